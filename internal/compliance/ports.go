package compliance

import "context"

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Watchlist screens fiscal identifiers against sanction and terrorism lists.
type Watchlist interface {
	Screen(ctx context.Context, fiscalID string) (Screening, error)
}

// Registry looks companies up in the business register.
type Registry interface {
	Lookup(ctx context.Context, taxID string) (Company, error)
}

// DocumentGenerator renders a profile and returns a reference to the stored document.
type DocumentGenerator interface {
	Generate(ctx context.Context, profile Profile) (string, error)
}

// SubmissionPublisher delivers a rendered regulator report.
type SubmissionPublisher interface {
	Publish(ctx context.Context, report *GoldReport, document []byte) error
}
