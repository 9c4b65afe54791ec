package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"homecrew/internal/domain"
	"homecrew/internal/events"
	"homecrew/internal/repo"
)

// RegisterConciergerie records a conciergerie account. Registration is
// idempotent on the name; re-registering updates the contact email.
func (e Engine) RegisterConciergerie(ctx context.Context, name, email string) (domain.Conciergerie, error) {
	if name == "" {
		return domain.Conciergerie{}, errors.New("conciergerie name is required")
	}
	if email == "" {
		return domain.Conciergerie{}, errors.New("conciergerie email is required")
	}
	c := domain.Conciergerie{
		Name:      name,
		Email:     email,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertConciergerie(ctx, c); err != nil {
		return domain.Conciergerie{}, err
	}
	return c, nil
}

// HomeOptions are the mutable fields of a home record.
type HomeOptions struct {
	Title          string
	Description    string
	Objectives     []string
	Zone           string
	CleaningHours  float64
	GardeningHours float64
	Images         []string
}

func (e Engine) CreateHome(ctx context.Context, actor string, opts HomeOptions) (domain.Home, error) {
	if err := validateHome(opts); err != nil {
		return domain.Home{}, err
	}
	taken, err := e.Repo.HomeTitleTaken(ctx, actor, opts.Title, "")
	if err != nil {
		return domain.Home{}, err
	}
	if taken {
		return domain.Home{}, ErrHomeTitleTaken
	}
	now := e.now().UTC().Format(time.RFC3339)
	h := domain.Home{
		ID:             uuid.New().String(),
		Conciergerie:   actor,
		Title:          opts.Title,
		Description:    opts.Description,
		Objectives:     opts.Objectives,
		Zone:           opts.Zone,
		CleaningHours:  opts.CleaningHours,
		GardeningHours: opts.GardeningHours,
		Images:         opts.Images,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Home{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertHome(ctx, tx, h); err != nil {
		return domain.Home{}, err
	}
	if err := e.Events.Append(ctx, tx, "home.created", "home", h.ID, actor, events.EventPayload{
		"title": h.Title,
	}); err != nil {
		return domain.Home{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Home{}, err
	}
	return h, nil
}

func (e Engine) UpdateHome(ctx context.Context, actor, id string, opts HomeOptions) (domain.Home, error) {
	h, err := e.Repo.GetHome(ctx, id)
	if err != nil {
		return h, err
	}
	if h.Conciergerie != actor {
		return h, ErrNotOwner
	}
	if err := validateHome(opts); err != nil {
		return h, err
	}
	taken, err := e.Repo.HomeTitleTaken(ctx, actor, opts.Title, id)
	if err != nil {
		return h, err
	}
	if taken {
		return h, ErrHomeTitleTaken
	}
	h.Title = opts.Title
	h.Description = opts.Description
	h.Objectives = opts.Objectives
	h.Zone = opts.Zone
	h.CleaningHours = opts.CleaningHours
	h.GardeningHours = opts.GardeningHours
	h.Images = opts.Images
	h.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return h, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateHome(ctx, tx, h); err != nil {
		return h, err
	}
	if err := e.Events.Append(ctx, tx, "home.updated", "home", h.ID, actor, nil); err != nil {
		return h, err
	}
	if err := tx.Commit(); err != nil {
		return h, err
	}
	return h, nil
}

// DeleteHome removes a home with no missions attached. Homes with mission
// history must have their missions deleted first so records never dangle.
func (e Engine) DeleteHome(ctx context.Context, actor, id string) error {
	h, err := e.Repo.GetHome(ctx, id)
	if err != nil {
		return err
	}
	if h.Conciergerie != actor {
		return ErrNotOwner
	}
	missions, err := e.Repo.ListMissions(ctx, repo.MissionFilters{HomeID: id})
	if err != nil {
		return err
	}
	if len(missions) > 0 {
		return ErrHomeInUse
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteHome(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "home.deleted", "home", id, actor, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func validateHome(opts HomeOptions) error {
	if opts.Title == "" {
		return errors.New("home title is required")
	}
	if opts.CleaningHours < 0 || opts.GardeningHours < 0 {
		return errors.New("task hours cannot be negative")
	}
	return nil
}
