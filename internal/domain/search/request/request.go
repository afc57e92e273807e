package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length.
	MaxQueryLength = 4096
	DefaultK       = 5
	MaxK           = 100
	// MaxInjuryConcerns caps the injury concerns a caller may send.
	MaxInjuryConcerns = 16
)

// Preferences are the optional structured hints a user supplies with a query.
type Preferences struct {
	Playstyle      shoe.Playstyle
	Budget         *float64
	FootType       string
	InjuryConcerns []string
}

// NewPreferences validates and normalizes user preferences. Empty values mean "unset".
// Failures wrap domain.ErrInvalidQuery.
func NewPreferences(playstyle string, budget *float64, footType string, injuryConcerns []string) (Preferences, error) {
	var p Preferences
	if strings.TrimSpace(playstyle) != "" {
		ps, err := shoe.ParsePlaystyle(playstyle)
		if err != nil {
			return Preferences{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		p.Playstyle = ps
	}
	if budget != nil {
		if *budget <= 0 {
			return Preferences{}, fmt.Errorf("%w: budget must be positive, got %g", domain.ErrInvalidQuery, *budget)
		}
		b := *budget
		p.Budget = &b
	}
	p.FootType = strings.ToLower(strings.TrimSpace(footType))
	if len(injuryConcerns) > MaxInjuryConcerns {
		return Preferences{}, fmt.Errorf("%w: too many injury concerns (max %d)", domain.ErrInvalidQuery, MaxInjuryConcerns)
	}
	for _, c := range injuryConcerns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			p.InjuryConcerns = append(p.InjuryConcerns, c)
		}
	}
	return p, nil
}

// IsEmpty reports whether no preference was supplied.
func (p Preferences) IsEmpty() bool {
	return p.Playstyle == "" && p.Budget == nil && p.FootType == "" && len(p.InjuryConcerns) == 0
}

// Request is a validated retrieval query.
type Request struct {
	query string
	k     int
	prefs Preferences
}

// New validates and normalizes a retrieval request.
// Defaults: k=5. k is clamped to MaxK. An empty query is allowed and routes to the store.
func New(query string, k int, prefs Preferences) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}
	return Request{query: strings.TrimSpace(query), k: k, prefs: prefs}, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// K returns the number of documents to return.
func (r *Request) K() int { return r.k }

// Preferences returns the user preferences.
func (r *Request) Preferences() Preferences { return r.prefs }
