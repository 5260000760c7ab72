package service

// Monitor event types
const (
	EventRespondentStarted   = "respondent_started"
	EventAnswerSaved         = "answer_saved"
	EventRespondentFinished  = "respondent_finished"
	EventRespondentRestarted = "respondent_restarted"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToMonitors(msgType string, payload interface{})
}

// ProgressEvent is the payload of every monitor event
type ProgressEvent struct {
	RespondentID string `json:"respondentId"`
	QuestionID   string `json:"questionId,omitempty"`
	Next         string `json:"next,omitempty"`
	Revision     string `json:"revision"`
}
