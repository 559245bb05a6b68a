package appointment

import "context"

// Outcome tags the answer of one resolution tier.
type Outcome int

const (
	// Found ends the chain with a value.
	Found Outcome = iota
	// NotFound ends the chain with a definitive miss.
	NotFound
	// Failed lets the next tier try.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

type Result[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
}

func FoundResult[T any](v T) Result[T] {
	return Result[T]{Outcome: Found, Value: v}
}

func NotFoundResult[T any]() Result[T] {
	return Result[T]{Outcome: NotFound}
}

func FailedResult[T any](err error) Result[T] {
	return Result[T]{Outcome: Failed, Err: err}
}

type Tier[T any] struct {
	Name    string
	Resolve func(ctx context.Context, key string) Result[T]
}

// Chain tries its tiers in order. The first Found or NotFound wins;
// if every tier fails the first failure is returned.
type Chain[T any] struct {
	tiers    []Tier[T]
	observer func(tier string, outcome Outcome)
}

func NewChain[T any](tiers ...Tier[T]) *Chain[T] {
	return &Chain[T]{tiers: tiers}
}

// Observe registers fn to be told the outcome of every tier that runs.
func (c *Chain[T]) Observe(fn func(tier string, outcome Outcome)) *Chain[T] {
	c.observer = fn
	return c
}

func (c *Chain[T]) Resolve(ctx context.Context, key string) (T, bool, error) {
	var zero T
	var firstErr error
	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		res := tier.Resolve(ctx, key)
		if c.observer != nil {
			c.observer(tier.Name, res.Outcome)
		}

		switch res.Outcome {
		case Found:
			return res.Value, true, nil
		case NotFound:
			return zero, false, nil
		default:
			if firstErr == nil {
				firstErr = res.Err
			}
		}
	}
	return zero, false, firstErr
}
