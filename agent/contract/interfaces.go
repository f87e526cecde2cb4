package contract

import "context"

type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
}

// Classifier returns the raw label text produced by the model, trimmed.
// Validation into an intent.Label happens at the caller.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (string, error)
}

type Formulator interface {
	Formulate(ctx context.Context, req FormulateRequest) (string, error)
}

type Registry interface {
	Summarizer() Summarizer
	Classifier() Classifier
	Schedule() Formulator
	Info() Formulator
	SmallTalk() Formulator
	LowConfidence() Formulator
}

type HistoryReader interface {
	Load(ctx context.Context, conversationID string) ([]Entry, error)
}

type HistoryStore interface {
	HistoryReader
	Append(ctx context.Context, conversationID string, entries ...Entry) error
}

// DoctorDirectory lists doctors that can be offered when booking.
type DoctorDirectory interface {
	Doctors(ctx context.Context) ([]Doctor, error)
}
