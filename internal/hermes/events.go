package hermes

import "time"

const (
	// SubjectTranscriptImported announces a transcript registered by the
	// import stage.
	SubjectTranscriptImported = "pipeline.transcript.imported"
	SubjectQuickQcCompleted   = "pipeline.transcript.qqc.completed"
	SubjectQuickQcFailed      = "pipeline.transcript.qqc.failed"
	SubjectAgentRegistered    = "pipeline.agent.avqqc.registered"
)

// TranscriptImportedEvent is the payload of SubjectTranscriptImported.
type TranscriptImportedEvent struct {
	TranscriptPath string `json:"transcript_path"`
	InterviewName  string `json:"interview_name,omitempty"`
	StudyID        string `json:"study_id,omitempty"`
}

// QuickQcEvent is published after each transcript is checked.
type QuickQcEvent struct {
	RecordID       string    `json:"record_id,omitempty"`
	TranscriptPath string    `json:"transcript_path"`
	Interviewer    string    `json:"interviewer,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	NumSpeakers    int       `json:"num_speakers"`
	NumTurns       int       `json:"num_turns"`
	ProcessTime    *float64  `json:"process_time,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
