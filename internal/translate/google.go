package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/loqalabs/juggie/internal/text"
)

const (
	defaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"
	defaultMaxChars       = 4500
)

// googleTranslator calls the public gtx endpoint used by the translate web widget.
type googleTranslator struct {
	endpoint string
	maxChars int
	client   *http.Client
}

func NewGoogleTranslator(endpoint string, maxChars int, client *http.Client) Translator {
	if endpoint == "" {
		endpoint = defaultGoogleEndpoint
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &googleTranslator{endpoint: endpoint, maxChars: maxChars, client: client}
}

func (g *googleTranslator) Translate(ctx context.Context, input, source, target string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return input, nil
	}
	if source == "" {
		source = "auto"
	}
	var parts []string
	for _, piece := range text.Chunk(input, g.maxChars) {
		out, err := g.translatePiece(ctx, piece, source, target)
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, " "), nil
}

func (g *googleTranslator) translatePiece(ctx context.Context, piece, source, target string) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", target)
	query.Set("dt", "t")
	form := url.Values{}
	form.Set("q", piece)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("translate returned status %s", resp.Status)
	}
	return parseGTX(body)
}

// parseGTX extracts the translated sentences from the nested array response:
// [[["translated","original",...],...],null,"en",...]
func parseGTX(body []byte) (string, error) {
	var root []any
	if err := sonic.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("translate response empty")
	}
	sentences, ok := root[0].([]any)
	if !ok {
		return "", fmt.Errorf("translate response missing sentences")
	}
	var b strings.Builder
	for _, entry := range sentences {
		fields, ok := entry.([]any)
		if !ok || len(fields) == 0 {
			continue
		}
		if s, ok := fields[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("translate response contained no text")
	}
	return b.String(), nil
}
