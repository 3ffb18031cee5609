// Package wizard implements the end-user migration wizard: an ordered step
// controller with crash-surviving form persistence, a typed event bus for
// in-app notifications, and an error boundary for fallible render functions.
package wizard

import (
	"errors"
	"fmt"
	"time"
)

// Step is one wizard screen. Transitions run strictly forward with Back
// allowed to the immediately preceding step only.
type Step int

const (
	StepIdentifier Step = iota // verify the legacy identifier and contact handle
	StepNewUsername            // choose the new identifier
	StepReview                 // confirm before submitting
	StepSuccess                // terminal
)

func (s Step) String() string {
	switch s {
	case StepIdentifier:
		return "identifier"
	case StepNewUsername:
		return "new_username"
	case StepReview:
		return "review"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ErrStepIncomplete is returned by Advance when the current step's required
// fields are not filled in.
var ErrStepIncomplete = errors.New("current step is incomplete")

// ErrNoBack is returned by Back on the first and terminal steps.
var ErrNoBack = errors.New("cannot go back from this step")

// FormState is the in-progress answer set. SavedAt is set by the store on
// save and used to discard stale state on load.
type FormState struct {
	Identifier      string    `json:"identifier"`
	ContactHandle   string    `json:"contactHandle"`
	NewIdentifier   string    `json:"newIdentifier"`
	IdentifierValid bool      `json:"identifierValid"`
	ContactValid    bool      `json:"contactValid"`
	TrackingID      string    `json:"trackingId"`
	SavedAt         time.Time `json:"savedAt"`
}

// Store persists in-progress form state between page loads. It is a
// convenience, not a durability guarantee.
type Store interface {
	Save(state FormState) error
	Load() (*FormState, error)
	Clear() error
}

// Controller drives the wizard. Not safe for concurrent use; the wizard is
// single-threaded by design.
type Controller struct {
	step  Step
	form  FormState
	store Store
	bus   *Bus
}

// NewController creates a wizard controller, restoring any saved form state
// from the store. A nil store disables persistence.
func NewController(store Store, bus *Bus) *Controller {
	c := &Controller{store: store, bus: bus}
	if store != nil {
		if saved, err := store.Load(); err == nil && saved != nil {
			c.form = *saved
		}
	}
	return c
}

// Current returns the active step.
func (c *Controller) Current() Step {
	return c.step
}

// Form returns a copy of the in-progress answers.
func (c *Controller) Form() FormState {
	return c.form
}

// SetField records one answer and persists the whole set. Changing a
// verified field invalidates its verification verdict.
func (c *Controller) SetField(field, value string) error {
	switch field {
	case "identifier":
		if c.form.Identifier != value {
			c.form.IdentifierValid = false
		}
		c.form.Identifier = value
	case "contactHandle":
		if c.form.ContactHandle != value {
			c.form.ContactValid = false
		}
		c.form.ContactHandle = value
	case "newIdentifier":
		c.form.NewIdentifier = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	c.publish(FieldChanged{Field: field, Value: value})
	return c.persist()
}

// MarkVerified records a server verification verdict for the identifier
// step.
func (c *Controller) MarkVerified(identifierValid, contactValid bool) error {
	c.form.IdentifierValid = identifierValid
	c.form.ContactValid = contactValid
	return c.persist()
}

// MarkSubmitted records an accepted submission and moves to the terminal
// step. Saved form state is cleared: there is nothing left to resume.
func (c *Controller) MarkSubmitted(trackingID string) error {
	c.form.TrackingID = trackingID
	from := c.step
	c.step = StepSuccess
	c.publish(StepChanged{From: from, To: c.step})
	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

// Advance moves to the next step if the current one is complete.
func (c *Controller) Advance() error {
	switch c.step {
	case StepIdentifier:
		if c.form.Identifier == "" || c.form.ContactHandle == "" {
			return ErrStepIncomplete
		}
		if !c.form.IdentifierValid || !c.form.ContactValid {
			return ErrStepIncomplete
		}
		return c.moveTo(StepNewUsername)
	case StepNewUsername:
		if c.form.NewIdentifier == "" {
			return ErrStepIncomplete
		}
		return c.moveTo(StepReview)
	case StepReview:
		// Submission happens out of band; MarkSubmitted moves to success.
		return errors.New("submit from the review step instead of advancing")
	default:
		return errors.New("wizard already complete")
	}
}

// Back returns to the immediately preceding step.
func (c *Controller) Back() error {
	switch c.step {
	case StepNewUsername:
		return c.moveTo(StepIdentifier)
	case StepReview:
		return c.moveTo(StepNewUsername)
	default:
		return ErrNoBack
	}
}

// Reset discards all answers and saved state and returns to the first step.
func (c *Controller) Reset() error {
	from := c.step
	c.step = StepIdentifier
	c.form = FormState{}
	c.publish(StepChanged{From: from, To: c.step})
	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

func (c *Controller) moveTo(next Step) error {
	from := c.step
	c.step = next
	c.publish(StepChanged{From: from, To: next})
	return c.persist()
}

func (c *Controller) persist() error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(c.form)
}

func (c *Controller) publish(e Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
