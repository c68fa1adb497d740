package establishment

import (
	"time"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
)

// evaluate applies the zero/one/many rule to list. candidate is the previous
// or preferred selection; it only counts when it names an active affiliation.
func evaluate(professionalID string, list []affiliation.Affiliation, candidate string, version uint64, now time.Time) *Context {
	c := &Context{
		professionalID: professionalID,
		affiliations:   affiliation.SortByID(list),
		version:        version,
		resolvedAt:     now,
	}

	active := affiliation.Active(c.affiliations)
	switch len(active) {
	case 0:
		c.state = StateNoEstablishment
	case 1:
		c.state = StateSingleEstablishment
		c.setActive(active[0])
	default:
		if a, ok := affiliation.Find(active, candidate); ok && candidate != "" {
			c.state = StateResolved
			c.setActive(a)
		} else {
			c.state = StateAwaitingSelection
			s := affiliation.SortForSuggestion(active)[0]
			c.suggested = &s
		}
	}
	c.lastGoodState = c.state
	return c
}

func (c *Context) setActive(a affiliation.Affiliation) {
	c.active = &a
	c.permissions = a.EffectivePermissions()
}

// failed derives the error context from the last good one. Without one, the
// result grants nothing and only carries the error.
func failed(professionalID string, lastGood *Context, err error, version uint64, now time.Time) *Context {
	if lastGood == nil {
		return &Context{
			professionalID: professionalID,
			state:          StateError,
			lastGoodState:  StateUninitialized,
			err:            err,
			version:        version,
			resolvedAt:     now,
		}
	}
	c := *lastGood
	c.state = StateError
	c.err = err
	c.stale = true
	c.version = version
	c.resolvedAt = now
	return &c
}
