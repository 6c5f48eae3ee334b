package protocol

import "time"

// ProgressEvent reports the state of one session as it moves through the pipeline.
type ProgressEvent struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Part      int       `json:"part,omitempty"`
	Total     int       `json:"total,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// AnswerRequest is the JSON body accepted by the answer API.
type AnswerRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
	Subject   string `json:"subject"`
	Marks     int    `json:"marks"`
	Language  string `json:"language"`
}

// AnswerResponse is the JSON result of one session.
type AnswerResponse struct {
	SessionID  string        `json:"session_id"`
	Language   string        `json:"language"`
	Answer     string        `json:"answer"`
	WordCount  int           `json:"word_count"`
	WordLimit  int           `json:"word_limit"`
	Translated bool          `json:"translated"`
	Chunks     int           `json:"chunks"`
	Notices    []string      `json:"notices,omitempty"`
	Audio      *AudioPayload `json:"audio,omitempty"`
}

// AudioPayload carries the assembled artifact inline.
type AudioPayload struct {
	Format   string `json:"format"`
	MIMEType string `json:"mime_type"`
	FileName string `json:"file_name"`
	Segments int    `json:"segments"`
	Base64   string `json:"base64"`
}

// LanguageInfo describes one supported output language.
type LanguageInfo struct {
	Name            string `json:"name"`
	TranslationCode string `json:"translation_code,omitempty"`
	Voice           string `json:"voice"`
}

// SessionEvent is one stored timeline entry.
type SessionEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionHistory is the stored record of one session.
type SessionHistory struct {
	SessionID string         `json:"session_id"`
	Question  string         `json:"question"`
	Subject   string         `json:"subject,omitempty"`
	Marks     int            `json:"marks"`
	Language  string         `json:"language"`
	Outcome   string         `json:"outcome,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Events    []SessionEvent `json:"events,omitempty"`
}

// ErrorResponse is returned by the API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	SubjectProgressPrefix = "juggie.progress"
	StreamProgress        = "JUGGIE_PROGRESS"

	// SubjectAnswerRequest takes an AnswerRequest and replies with an
	// AnswerResponse or an ErrorResponse.
	SubjectAnswerRequest = "juggie.answer.request"
	QueueAnswer          = "juggie-answer"
)

// ProgressSubject is the bus subject carrying events for one session.
func ProgressSubject(sessionID string) string {
	return SubjectProgressPrefix + "." + sessionID
}
