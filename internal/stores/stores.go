package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
)

// Typed store instances
type (
	Companies     = store.Collection[models.Company, int64, models.CompanyInput, models.CompanyUpdate]
	Reviews       = store.Collection[models.Review, int64, models.ReviewInput, models.ReviewUpdate]
	Plans         = store.Collection[models.Plan, int64, models.PlanInput, models.PlanUpdate]
	Features      = store.Collection[models.Feature, int64, models.FeatureInput, models.FeatureUpdate]
	Users         = store.Collection[models.User, int64, models.UserInput, models.UserUpdate]
	Subscriptions = store.Collection[models.Subscription, int64, models.SubscriptionInput, models.SubscriptionUpdate]
	Invitations   = store.Collection[models.Invitation, string, models.InvitationInput, models.InvitationUpdate]
	Tickets       = store.Collection[models.Ticket, int64, models.TicketInput, models.TicketUpdate]
	Reports       = store.Collection[models.Report, int64, models.ReportInput, models.ReportUpdate]
	Analytics     = store.Record[models.Analytics, struct{}]
	Settings      = store.Record[models.Settings, models.Settings]
)

// Store names as used in routes, logs and change events
const (
	NameCompanies     = "companies"
	NameReviews       = "reviews"
	NameReviewsAll    = "reviews_all"
	NamePlans         = "plans"
	NameFeatures      = "features"
	NameUsers         = "users"
	NameSubscriptions = "subscriptions"
	NameInvitations   = "invitations"
	NameTickets       = "tickets"
	NameReports       = "reports"
	NameAnalytics     = "analytics"
	NameSettings      = "settings"
)

func named(opts store.Options, name string) store.Options {
	opts.Name = name
	return opts
}

func NewCompanies(client *apiclient.Client, path PathFunc, opts store.Options) *Companies {
	resource := NewResource[models.Company, int64, models.CompanyInput, models.CompanyUpdate](client, path, apiclient.DefaultPageKeys.WithItemsKey("companies"))
	return store.NewCollection[models.Company, int64, models.CompanyInput, models.CompanyUpdate](WithBulk(resource, store.BulkApprove, store.BulkReject), named(opts, NameCompanies))
}

// NewReviewResource is shared by the paged and the all-items review views
func NewReviewResource(client *apiclient.Client, path PathFunc) *BulkResource[models.Review, int64, models.ReviewInput, models.ReviewUpdate] {
	resource := NewResource[models.Review, int64, models.ReviewInput, models.ReviewUpdate](client, path, apiclient.DefaultPageKeys.WithItemsKey("reviews"))
	return WithBulk(resource, store.BulkApprove, store.BulkReject, store.BulkDismiss)
}

// NewReviews creates a standalone paged review collection
func NewReviews(client *apiclient.Client, path PathFunc, opts store.Options) *Reviews {
	return store.NewCollection[models.Review, int64, models.ReviewInput, models.ReviewUpdate](NewReviewResource(client, path), named(opts, NameReviews))
}

func NewPlans(client *apiclient.Client, opts store.Options) *Plans {
	resource := NewResource[models.Plan, int64, models.PlanInput, models.PlanUpdate](client, StaticPath("/plans"), apiclient.DefaultPageKeys.WithItemsKey("plans"))
	opts.Placement = store.InsertBack
	return store.NewCollection[models.Plan, int64, models.PlanInput, models.PlanUpdate](resource, named(opts, NamePlans))
}

func NewFeatures(client *apiclient.Client, opts store.Options) *Features {
	resource := NewResource[models.Feature, int64, models.FeatureInput, models.FeatureUpdate](client, StaticPath("/features"), apiclient.DefaultPageKeys.WithItemsKey("features"))
	opts.Placement = store.InsertBack
	return store.NewCollection[models.Feature, int64, models.FeatureInput, models.FeatureUpdate](resource, named(opts, NameFeatures))
}

func NewUsers(client *apiclient.Client, opts store.Options) *Users {
	resource := NewResource[models.User, int64, models.UserInput, models.UserUpdate](client, StaticPath("/users"), apiclient.DefaultPageKeys.WithItemsKey("users"))
	return store.NewCollection[models.User, int64, models.UserInput, models.UserUpdate](resource, named(opts, NameUsers))
}

func NewSubscriptions(client *apiclient.Client, path PathFunc, opts store.Options) *Subscriptions {
	resource := NewResource[models.Subscription, int64, models.SubscriptionInput, models.SubscriptionUpdate](client, path, apiclient.DefaultPageKeys.WithItemsKey("subscriptions"))
	return store.NewCollection[models.Subscription, int64, models.SubscriptionInput, models.SubscriptionUpdate](resource, named(opts, NameSubscriptions))
}

func NewInvitations(client *apiclient.Client, path PathFunc, opts store.Options) *Invitations {
	resource := NewResource[models.Invitation, string, models.InvitationInput, models.InvitationUpdate](client, path, apiclient.DefaultPageKeys.WithItemsKey("invitations"))
	return store.NewCollection[models.Invitation, string, models.InvitationInput, models.InvitationUpdate](resource, named(opts, NameInvitations))
}

func NewTickets(client *apiclient.Client, path PathFunc, opts store.Options) *Tickets {
	resource := NewResource[models.Ticket, int64, models.TicketInput, models.TicketUpdate](client, path, apiclient.DefaultPageKeys.WithItemsKey("tickets"))
	return store.NewCollection[models.Ticket, int64, models.TicketInput, models.TicketUpdate](resource, named(opts, NameTickets))
}

// NewReports creates the moderation queue, most-reported reviews first.
// Reports are dismissed one id at a time; the backend has no bulk call for
// them.
func NewReports(client *apiclient.Client, opts store.Options) *Reports {
	resource := NewResource[models.Report, int64, models.ReportInput, models.ReportUpdate](client, StaticPath("/reports"), apiclient.DefaultPageKeys.WithItemsKey("reports"))
	reports := store.NewCollection[models.Report, int64, models.ReportInput, models.ReportUpdate](WithItemOps(resource, store.BulkDismiss), named(opts, NameReports))
	reports.SetOrder(SortReports)
	return reports
}

// SortReports puts reports about the most-reported reviews first, keeping
// server order among equals
func SortReports(reports []models.Report) []models.Report {
	return store.SortByRelatedCount(reports, func(r models.Report) int64 { return r.ReviewID })
}

func NewAnalytics(client *apiclient.Client, path PathFunc, opts store.Options) *Analytics {
	return store.NewRecord[models.Analytics, struct{}](NewDocument[models.Analytics, struct{}](client, path), named(opts, NameAnalytics))
}

func NewSettings(client *apiclient.Client, path PathFunc, opts store.Options) *Settings {
	return store.NewRecord[models.Settings, models.Settings](NewDocument[models.Settings, models.Settings](client, path), named(opts, NameSettings))
}

// ReviewFields reads the fields the reviewer filters on
var ReviewFields = store.FilterFields[models.Review]{
	Rating: func(r models.Review) int { return r.Rating },
	Status: func(r models.Review) string { return r.Status },
	Text:   func(r models.Review) []string { return []string{r.Title, r.Description} },
}

// ReviewBoard pairs the server-paginated review list with the all-reviews
// set the client-side filters run over. Every successful mutation made
// through the board invalidates both views.
type ReviewBoard struct {
	Paged    *Reviews
	All      *store.FilteredView[models.Review]
	pageSize int

	invalidate func(ctx context.Context) error
}

// NewReviewBoard creates both views over one review resource
func NewReviewBoard(client *apiclient.Client, path PathFunc, pageSize int, opts store.Options) *ReviewBoard {
	resource := NewReviewResource(client, path)
	b := &ReviewBoard{
		Paged:    store.NewCollection[models.Review, int64, models.ReviewInput, models.ReviewUpdate](resource, named(opts, NameReviews)),
		All:      store.NewFilteredView[models.Review](resource, ReviewFields, pageSize, named(opts, NameReviewsAll)),
		pageSize: pageSize,
	}
	b.invalidate = b.Refresh
	return b
}

// OnInvalidate replaces how the board refreshes after a mutation; the
// reconciler uses it to track sync status
func (b *ReviewBoard) OnInvalidate(fn func(ctx context.Context) error) {
	b.invalidate = fn
}

// Refresh re-fetches the current page and the all-items set
func (b *ReviewBoard) Refresh(ctx context.Context) error {
	var errs []error
	if !b.Paged.Refresh(ctx, b.pageSize) {
		if msg := b.Paged.Snapshot().Error; msg != "" {
			errs = append(errs, fmt.Errorf("%s: %s", NameReviews, msg))
		}
	}
	if !b.All.FetchAll(ctx, store.Criteria{}) {
		if msg := b.All.Snapshot().Error; msg != "" {
			errs = append(errs, fmt.Errorf("%s: %s", NameReviewsAll, msg))
		}
	}
	return errors.Join(errs...)
}

func (b *ReviewBoard) Create(ctx context.Context, payload models.ReviewInput) bool {
	return b.after(ctx, b.Paged.Create(ctx, payload))
}

func (b *ReviewBoard) Update(ctx context.Context, id int64, payload models.ReviewUpdate) bool {
	return b.after(ctx, b.Paged.Update(ctx, id, payload))
}

// Reply posts the company's answer to a review
func (b *ReviewBoard) Reply(ctx context.Context, id int64, reply string) bool {
	return b.Update(ctx, id, models.ReviewUpdate{Reply: strings.TrimSpace(reply)})
}

func (b *ReviewBoard) Remove(ctx context.Context, id int64) bool {
	return b.after(ctx, b.Paged.Remove(ctx, id))
}

func (b *ReviewBoard) BulkOperate(ctx context.Context, ids []int64, op store.BulkOp) store.BulkResult[int64] {
	result := b.Paged.BulkOperate(ctx, ids, op)
	b.after(ctx, len(result.Succeeded) > 0 && !result.Canceled)
	return result
}

func (b *ReviewBoard) ClearError() {
	b.Paged.ClearError()
	b.All.ClearError()
}

func (b *ReviewBoard) Reset() {
	b.Paged.Reset()
	b.All.Reset()
}

func (b *ReviewBoard) after(ctx context.Context, ok bool) bool {
	if ok && b.invalidate != nil {
		_ = b.invalidate(ctx)
	}
	return ok
}
