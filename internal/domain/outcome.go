package domain

// OutcomeKind tags the variant held by a FetchOutcome
type OutcomeKind int

const (
	OutcomeEmpty OutcomeKind = iota
	OutcomeSuccess
	OutcomeUpstreamError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUpstreamError:
		return "upstream_error"
	default:
		return "empty"
	}
}

// FetchOutcome is the result of one fetch pipeline stage.
// Err is only set for OutcomeUpstreamError and Items only for OutcomeSuccess.
type FetchOutcome struct {
	Kind  OutcomeKind
	Items []ProductItem
	Err   error
}

// Success wraps items, collapsing to Empty when there are none.
func Success(items []ProductItem) FetchOutcome {
	if len(items) == 0 {
		return Empty()
	}
	return FetchOutcome{Kind: OutcomeSuccess, Items: items}
}

func Empty() FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmpty}
}

func UpstreamError(err error) FetchOutcome {
	return FetchOutcome{Kind: OutcomeUpstreamError, Err: err}
}
