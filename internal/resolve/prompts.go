package resolve

import (
	"context"
	"fmt"

	"github.com/ykarpov/photodex/internal/catalog"
)

// IdentityOption is one selectable identity in a prompt.
type IdentityOption struct {
	ID        int64
	FullName  string
	ShortName string
	Notes     string
}

// DogOption is one selectable dog identity.
type DogOption struct {
	ID    int64
	Name  string
	Breed string
	Owner string
}

// ReferenceConfirm asks yes/no about a reference-catalog match. Yes imports
// the candidate into the active catalog and resolves to it.
type ReferenceConfirm struct {
	ImagePath string
	BBox      []float64
	FaceCrop  []byte // JPEG, nil when the source image could not be loaded
	Candidate IdentityOption
	Distance  float64
}

// PersonPrompt asks the human to identify one person detection.
type PersonPrompt struct {
	ImagePath  string
	BBox       []float64
	Confidence float64
	HasFace    bool
	FaceCrop   []byte // JPEG, nil for faceless detections
	// Existing lists known active-catalog identities not yet claimed in
	// this image.
	Existing []IdentityOption
	// Reference lists known reference-catalog identities, when one is
	// configured.
	Reference []IdentityOption
	// AllowLocal permits an image-scoped naming without a catalog row.
	// Only faceless detections offer it.
	AllowLocal bool
}

// PersonAction says which path a person decision took.
type PersonAction int

const (
	// ActionLeaveUnknown declines to name the detection. A fresh
	// anonymous identity is still allocated so the detection is countable.
	ActionLeaveUnknown PersonAction = iota
	// ActionNewKnown creates a new known identity from NewPerson.
	ActionNewKnown
	// ActionExisting selects an active-catalog identity by id.
	ActionExisting
	// ActionReference selects a reference-catalog identity by id,
	// importing it into the active catalog.
	ActionReference
	// ActionLocal names the detection for this image only.
	ActionLocal
)

// PersonDecision is the human's answer to a PersonPrompt. Only the fields
// matching Action are read.
type PersonDecision struct {
	Action      PersonAction
	NewPerson   catalog.Person
	ExistingID  int64
	ReferenceID int64
	Local       catalog.LocalIdentity
}

// DogPrompt asks the human to identify one dog detection.
type DogPrompt struct {
	ImagePath  string
	BBox       []float64
	Confidence float64
	Breed      string // detector's breed guess, may be empty
	Existing   []DogOption
}

// DogAction says which path a dog decision took.
type DogAction int

const (
	DogActionLeaveUnknown DogAction = iota
	DogActionNewKnown
	DogActionExisting
)

// DogDecision is the human's answer to a DogPrompt.
type DogDecision struct {
	Action     DogAction
	NewDog     catalog.Dog
	ExistingID int64
}

// Decider answers resolution questions. The terminal front end implements
// it over the worker inbox; tests implement it directly.
type Decider interface {
	DecidePerson(ctx context.Context, prompt *PersonPrompt) (*PersonDecision, error)
	DecideDog(ctx context.Context, prompt *DogPrompt) (*DogDecision, error)
	ConfirmReference(ctx context.Context, confirm *ReferenceConfirm) (bool, error)
}

// AskFunc posts a payload to whoever owns the decision surface and blocks
// for the answer. worker.Inbox.Ask satisfies it.
type AskFunc func(ctx context.Context, payload any) (any, error)

type askDecider struct {
	ask AskFunc
}

// DeciderFromAsk adapts an AskFunc into a Decider. Prompts travel as their
// pointer types; answers must come back as the matching decision type.
func DeciderFromAsk(ask AskFunc) Decider {
	return &askDecider{ask: ask}
}

func (d *askDecider) DecidePerson(ctx context.Context, prompt *PersonPrompt) (*PersonDecision, error) {
	answer, err := d.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	decision, ok := answer.(*PersonDecision)
	if !ok {
		return nil, fmt.Errorf("person prompt answered with %T", answer)
	}
	return decision, nil
}

func (d *askDecider) DecideDog(ctx context.Context, prompt *DogPrompt) (*DogDecision, error) {
	answer, err := d.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	decision, ok := answer.(*DogDecision)
	if !ok {
		return nil, fmt.Errorf("dog prompt answered with %T", answer)
	}
	return decision, nil
}

func (d *askDecider) ConfirmReference(ctx context.Context, confirm *ReferenceConfirm) (bool, error) {
	answer, err := d.ask(ctx, confirm)
	if err != nil {
		return false, err
	}
	yes, ok := answer.(bool)
	if !ok {
		return false, fmt.Errorf("reference confirmation answered with %T", answer)
	}
	return yes, nil
}
