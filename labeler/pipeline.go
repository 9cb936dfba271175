package labeler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Pipeline drives one labeling run: enumerate recent donations, decide per
// donation whether a label is needed, and attach it through the web mutation
// endpoint. Lookup tables and the web session are fetched lazily, once, and
// reused for the rest of the run.
type Pipeline struct {
	Config  Config
	API     *APIClient
	Auth    AuthStrategy
	Mutator *LabelMutator

	labelsByID   map[string]Label
	labelsBySlug map[string]Label
	campusesByID map[string]Campus
	mappings     map[string]string
	session      *Session
	now          func() time.Time
}

func NewPipeline(cfg Config, api *APIClient, auth AuthStrategy, mutator *LabelMutator) *Pipeline {
	return &Pipeline{
		Config:  cfg,
		API:     api,
		Auth:    auth,
		Mutator: mutator,
		now:     time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context) error {
	return p.API.EachDonation(ctx, p.receivedAfter(), func(d Donation) error {
		return p.process(ctx, d)
	})
}

func (p *Pipeline) receivedAfter() string {
	window := time.Duration(p.Config.DaysToLookBack) * 24 * time.Hour
	return p.now().Add(-window).UTC().Format(ReceivedAfterDateFormat)
}

func (p *Pipeline) process(ctx context.Context, donation Donation) error {
	if donation.PaymentStatus() == "failed" {
		return nil
	}

	labelsByID, err := p.givingLabels(ctx)
	if err != nil {
		return err
	}
	var existing []string
	for _, id := range donation.LabelIDs() {
		if label, ok := labelsByID[id]; ok {
			existing = append(existing, label.Attributes.Slug)
		}
	}
	if len(existing) > 0 {
		log.Printf("donation %s: already has label %s", donation.ID(), strings.Join(existing, ", "))
		return nil
	}

	personID, ok := donation.PersonID()
	if !ok {
		log.Printf("donation %s: no linked person", donation.ID())
		return nil
	}
	person, err := p.API.FindPerson(ctx, personID)
	if err != nil {
		return err
	}
	campusID, ok := person.PrimaryCampusID()
	if !ok {
		log.Printf("donation %s: no campus for %s", donation.ID(), person.Name())
		return nil
	}

	campuses, err := p.peopleCampuses(ctx)
	if err != nil {
		return err
	}
	// From here down every miss is a configuration or data bug that must
	// stop the run, not a condition to skip past.
	campus, ok := campuses[campusID]
	if !ok {
		return fmt.Errorf("campus %s not found in people campuses", campusID)
	}
	slug, ok := p.labelMappings()[campus.Attributes.Name]
	if !ok {
		return fmt.Errorf("no giving label configured for campus %q", campus.Attributes.Name)
	}
	labelsBySlug, err := p.givingLabelsBySlug(ctx)
	if err != nil {
		return err
	}
	label, ok := labelsBySlug[slug]
	if !ok {
		return fmt.Errorf("giving label %q not found", slug)
	}

	log.Printf("donation %s: applying label %s for %s...", donation.ID(), slug, person.Name())
	session, err := p.webSession(ctx)
	if err != nil {
		return err
	}
	return p.Mutator.AttachLabel(ctx, session, donation.ID(), label.ID)
}

func (p *Pipeline) givingLabels(ctx context.Context) (map[string]Label, error) {
	if p.labelsByID != nil {
		return p.labelsByID, nil
	}
	labels, err := p.API.GivingLabels(ctx)
	if err != nil {
		return nil, err
	}
	p.labelsByID = make(map[string]Label, len(labels))
	p.labelsBySlug = make(map[string]Label, len(labels))
	for _, label := range labels {
		p.labelsByID[label.ID] = label
		p.labelsBySlug[label.Attributes.Slug] = label
	}
	return p.labelsByID, nil
}

func (p *Pipeline) givingLabelsBySlug(ctx context.Context) (map[string]Label, error) {
	if _, err := p.givingLabels(ctx); err != nil {
		return nil, err
	}
	return p.labelsBySlug, nil
}

func (p *Pipeline) peopleCampuses(ctx context.Context) (map[string]Campus, error) {
	if p.campusesByID != nil {
		return p.campusesByID, nil
	}
	campuses, err := p.API.PeopleCampuses(ctx)
	if err != nil {
		return nil, err
	}
	p.campusesByID = make(map[string]Campus, len(campuses))
	for _, campus := range campuses {
		p.campusesByID[campus.ID] = campus
	}
	return p.campusesByID, nil
}

func (p *Pipeline) labelMappings() map[string]string {
	if p.mappings == nil {
		p.mappings = p.Config.LabelMappings()
	}
	return p.mappings
}

func (p *Pipeline) webSession(ctx context.Context) (Session, error) {
	if p.session != nil {
		return *p.session, nil
	}
	session, err := p.Auth.Establish(ctx)
	if err != nil {
		return Session{}, err
	}
	p.session = &session
	return session, nil
}
