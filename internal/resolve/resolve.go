// Package resolve assigns identities to detections. Automatic matches go
// through the embedding matcher; everything else is routed to a Decider,
// under the per-image invariant that no identity claims two detections in
// the same photo.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/ykarpov/photodex/internal/associate"
	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/imaging"
	"github.com/ykarpov/photodex/internal/match"
)

// cropPad is how many pixels a face crop extends past the face box, so the
// human sees some surrounding context.
const cropPad = 24

// Matcher is the active-catalog embedding index. New embeddings are added
// as sightings are confirmed, within the same run.
type Matcher interface {
	match.Source
	Add(c match.Candidate)
}

// Coordinator resolves the detections of one image at a time.
type Coordinator struct {
	store     *catalog.Store
	active    Matcher
	decider   Decider
	reference *catalog.Store // nil when no reference catalog is configured
	refSource match.Source   // nil alongside reference
}

// Config wires a Coordinator. Store, Active, and Decider are required;
// Reference and ReferenceSource come together or not at all.
type Config struct {
	Store           *catalog.Store
	Active          Matcher
	Decider         Decider
	Reference       *catalog.Store
	ReferenceSource match.Source
}

func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		store:     cfg.Store,
		active:    cfg.Active,
		decider:   cfg.Decider,
		reference: cfg.Reference,
		refSource: cfg.ReferenceSource,
	}
}

// ResolveImage runs the resolution state machine over a sorted worklist and
// the image's dog detections. photo may be nil, in which case prompts carry
// no face crops. Committed rows survive cancellation; the context is
// checked between detections.
func (c *Coordinator) ResolveImage(ctx context.Context, imageID int64, imagePath string, photo image.Image, items []associate.Item, dogs []detect.DogDetection) error {
	assigned := make(map[int64]bool)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.resolvePerson(ctx, imageID, imagePath, photo, i, item, assigned); err != nil {
			return fmt.Errorf("resolve person detection %d of %s: %w", i, imagePath, err)
		}
	}

	assignedDogs := make(map[int64]bool)
	for i, dog := range dogs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.resolveDog(ctx, imageID, imagePath, i, dog, assignedDogs); err != nil {
			return fmt.Errorf("resolve dog detection %d of %s: %w", i, imagePath, err)
		}
	}

	return nil
}

func (c *Coordinator) resolvePerson(ctx context.Context, imageID int64, imagePath string, photo image.Image, index int, item associate.Item, assigned map[int64]bool) error {
	skip := func(id int64) bool { return assigned[id] }

	// Automatic path: a strict-threshold hit against the active catalog
	// resolves immediately.
	if item.HasFace() {
		if hit, ok := c.active.Best(item.Embedding, skip); ok {
			return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(hit.IdentityID), assigned)
		}

		// Reference catalog consult: a hit needs explicit confirmation
		// before the identity is imported.
		if c.refSource != nil {
			personID, handled, err := c.consultReference(ctx, imagePath, photo, item, assigned)
			if err != nil {
				return err
			}
			if handled {
				return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(personID), assigned)
			}
		}
	}

	// Manual path.
	prompt, err := c.buildPersonPrompt(ctx, imagePath, photo, item, assigned)
	if err != nil {
		return err
	}
	decision, err := c.decider.DecidePerson(ctx, prompt)
	if err != nil {
		return err
	}

	switch decision.Action {
	case ActionNewKnown:
		p := decision.NewPerson
		p.Known = true
		personID, err := c.store.CreatePerson(ctx, &p)
		if err != nil {
			return err
		}
		return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(personID), assigned)

	case ActionExisting:
		if assigned[decision.ExistingID] {
			// Already claimed in this image. Never overwrite; fall
			// through to an anonymous identity.
			log.Printf("identity %d already assigned in this image, leaving detection unknown", decision.ExistingID)
			return c.commitAnonymousPerson(ctx, imageID, index, item, assigned)
		}
		return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(decision.ExistingID), assigned)

	case ActionReference:
		personID, err := c.importReference(ctx, decision.ReferenceID)
		if err != nil {
			return err
		}
		if assigned[personID] {
			log.Printf("imported identity %d already assigned in this image, leaving detection unknown", personID)
			return c.commitAnonymousPerson(ctx, imageID, index, item, assigned)
		}
		return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(personID), assigned)

	case ActionLocal:
		if item.HasFace() {
			return fmt.Errorf("local naming is only available for faceless detections")
		}
		detection := &catalog.PersonDetection{
			ImageID:     imageID,
			Identity:    catalog.LocalRef(decision.Local),
			PersonIndex: index,
			BBox:        item.BBox,
			Confidence:  item.Confidence,
		}
		_, err := c.store.InsertPersonDetection(ctx, detection)
		return err

	default:
		return c.commitAnonymousPerson(ctx, imageID, index, item, assigned)
	}
}

// consultReference queries the reference catalog and, on a confirmed hit,
// imports the identity. handled is false when the human said no, there was
// no hit, or the imported identity is already claimed in this image.
func (c *Coordinator) consultReference(ctx context.Context, imagePath string, photo image.Image, item associate.Item, assigned map[int64]bool) (personID int64, handled bool, err error) {
	hit, ok := c.refSource.Best(item.Embedding, nil)
	if !ok {
		return 0, false, nil
	}

	refPerson, err := c.reference.GetPerson(ctx, hit.IdentityID)
	if err != nil {
		return 0, false, fmt.Errorf("load reference person %d: %w", hit.IdentityID, err)
	}

	confirm := &ReferenceConfirm{
		ImagePath: imagePath,
		BBox:      item.FaceBBox,
		FaceCrop:  cropFace(photo, item.FaceBBox),
		Candidate: IdentityOption{
			ID:        refPerson.ID,
			FullName:  refPerson.FullName,
			ShortName: refPerson.ShortName,
			Notes:     refPerson.Notes,
		},
		Distance: hit.Distance,
	}
	yes, err := c.decider.ConfirmReference(ctx, confirm)
	if err != nil {
		return 0, false, err
	}
	if !yes {
		return 0, false, nil
	}

	personID, err = c.importReference(ctx, refPerson.ID)
	if err != nil {
		return 0, false, err
	}
	if assigned[personID] {
		log.Printf("reference match %d already assigned in this image, falling through to manual entry", personID)
		return 0, false, nil
	}
	return personID, true, nil
}

// importReference brings a reference-catalog person into the active
// catalog, matching by exact display name so repeated imports reuse the
// existing row.
func (c *Coordinator) importReference(ctx context.Context, refID int64) (int64, error) {
	refPerson, err := c.reference.GetPerson(ctx, refID)
	if err != nil {
		return 0, fmt.Errorf("load reference person %d: %w", refID, err)
	}

	existing, err := c.store.FindKnownPersonByName(ctx, refPerson.FullName, refPerson.ShortName)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return 0, err
	}

	p := catalog.Person{
		Known:     true,
		FullName:  refPerson.FullName,
		ShortName: refPerson.ShortName,
		Notes:     refPerson.Notes,
	}
	return c.store.CreatePerson(ctx, &p)
}

func (c *Coordinator) buildPersonPrompt(ctx context.Context, imagePath string, photo image.Image, item associate.Item, assigned map[int64]bool) (*PersonPrompt, error) {
	persons, err := c.store.ListPersons(ctx, true)
	if err != nil {
		return nil, err
	}

	prompt := &PersonPrompt{
		ImagePath:  imagePath,
		BBox:       item.BBox,
		Confidence: item.Confidence,
		HasFace:    item.HasFace(),
		AllowLocal: !item.HasFace(),
	}
	for _, p := range persons {
		if assigned[p.ID] {
			continue
		}
		prompt.Existing = append(prompt.Existing, IdentityOption{
			ID: p.ID, FullName: p.FullName, ShortName: p.ShortName, Notes: p.Notes,
		})
	}

	if item.HasFace() {
		prompt.FaceCrop = cropFace(photo, item.FaceBBox)
	}

	if c.reference != nil {
		refs, err := c.reference.ListPersons(ctx, true)
		if err != nil {
			return nil, err
		}
		for _, p := range refs {
			prompt.Reference = append(prompt.Reference, IdentityOption{
				ID: p.ID, FullName: p.FullName, ShortName: p.ShortName, Notes: p.Notes,
			})
		}
	}

	return prompt, nil
}

// commitPerson stores the resolved detection, marks the identity claimed,
// and appends the face embedding as a new sighting when the identity is
// known and the detection carries a face.
func (c *Coordinator) commitPerson(ctx context.Context, imageID int64, index int, item associate.Item, identity catalog.IdentityRef, assigned map[int64]bool) error {
	var encodingID int64
	if item.HasFace() {
		person, err := c.store.GetPerson(ctx, identity.PersonID)
		if err != nil {
			return err
		}
		if person.Known {
			encoding := &catalog.FaceEncoding{
				PersonID: identity.PersonID,
				ImageID:  imageID,
				Encoding: item.Embedding,
				Location: item.FaceBBox,
			}
			if _, err := c.store.InsertFaceEncoding(ctx, encoding); err != nil {
				return err
			}
			encodingID = encoding.ID
			c.active.Add(match.Candidate{IdentityID: identity.PersonID, Embedding: item.Embedding})
		}
	}

	detection := &catalog.PersonDetection{
		ImageID:        imageID,
		Identity:       identity,
		PersonIndex:    index,
		BBox:           item.BBox,
		Confidence:     item.Confidence,
		HasFace:        item.HasFace(),
		FaceEncodingID: encodingID,
	}
	if _, err := c.store.InsertPersonDetection(ctx, detection); err != nil {
		return err
	}

	assigned[identity.PersonID] = true
	return nil
}

// commitAnonymousPerson allocates a fresh placeholder identity so the
// detection stays countable.
func (c *Coordinator) commitAnonymousPerson(ctx context.Context, imageID int64, index int, item associate.Item, assigned map[int64]bool) error {
	p := catalog.Person{Known: false}
	personID, err := c.store.CreatePerson(ctx, &p)
	if err != nil {
		return err
	}
	return c.commitPerson(ctx, imageID, index, item, catalog.CatalogRef(personID), assigned)
}

func (c *Coordinator) resolveDog(ctx context.Context, imageID int64, imagePath string, index int, dog detect.DogDetection, assignedDogs map[int64]bool) error {
	dogs, err := c.store.ListDogs(ctx, true)
	if err != nil {
		return err
	}

	prompt := &DogPrompt{
		ImagePath:  imagePath,
		BBox:       dog.BBox,
		Confidence: dog.Confidence,
		Breed:      dog.Breed,
	}
	for _, d := range dogs {
		if assignedDogs[d.ID] {
			continue
		}
		prompt.Existing = append(prompt.Existing, DogOption{
			ID: d.ID, Name: d.Name, Breed: d.Breed, Owner: d.Owner,
		})
	}

	decision, err := c.decider.DecideDog(ctx, prompt)
	if err != nil {
		return err
	}

	var dogID int64
	switch decision.Action {
	case DogActionNewKnown:
		d := decision.NewDog
		d.Known = true
		if d.Breed == "" {
			d.Breed = dog.Breed
		}
		dogID, err = c.store.CreateDog(ctx, &d)
		if err != nil {
			return err
		}

	case DogActionExisting:
		if assignedDogs[decision.ExistingID] {
			log.Printf("dog %d already assigned in this image, leaving detection unknown", decision.ExistingID)
			dogID, err = c.anonymousDog(ctx, dog)
			if err != nil {
				return err
			}
		} else {
			dogID = decision.ExistingID
		}

	default:
		dogID, err = c.anonymousDog(ctx, dog)
		if err != nil {
			return err
		}
	}

	detection := &catalog.DogDetection{
		ImageID:    imageID,
		DogID:      dogID,
		DogIndex:   index,
		BBox:       dog.BBox,
		Confidence: dog.Confidence,
	}
	if _, err := c.store.InsertDogDetection(ctx, detection); err != nil {
		return err
	}
	assignedDogs[dogID] = true
	return nil
}

func (c *Coordinator) anonymousDog(ctx context.Context, dog detect.DogDetection) (int64, error) {
	d := catalog.Dog{Known: false, Breed: dog.Breed}
	return c.store.CreateDog(ctx, &d)
}

// cropFace extracts a JPEG face crop for a prompt. Returns nil when the
// photo is unavailable or encoding fails; prompts degrade gracefully.
func cropFace(photo image.Image, faceBBox []float64) []byte {
	if photo == nil || len(faceBBox) != 4 {
		return nil
	}
	crop := imaging.Crop(photo, faceBBox, cropPad)
	data, err := imaging.EncodeJPEG(crop, 85)
	if err != nil {
		return nil
	}
	return data
}
