// Package app builds the per-application store containers: one injected
// set of stores each for the admin dashboard, the business portal and the
// reviewer site.
package app

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/events"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
	"reviewhub-console/internal/stores"
	viewsync "reviewhub-console/internal/sync"
	"reviewhub-console/internal/telemetry"
)

// Application names
const (
	NameAdmin    = "admin"
	NameBusiness = "business"
	NameReviewer = "reviewer"
)

// Options configures every container
type Options struct {
	PageSize        int
	BulkConcurrency int
	Instruments     *telemetry.Instruments
	Logger          *slog.Logger
}

func (o Options) storeOptions() store.Options {
	return store.Options{
		BulkConcurrency: o.BulkConcurrency,
		Instruments:     o.Instruments,
		Logger:          o.Logger,
	}
}

func (o Options) pageSize() int {
	if o.PageSize <= 0 {
		return 10
	}
	return o.PageSize
}

// Container is a named set of store handles
type Container interface {
	Name() string
	Handle(store string) (Handle, bool)
	Names() []string
	// Reset clears every store of the container, e.g. on logout
	Reset()
}

type base struct {
	name    string
	handles map[string]Handle
	order   []string
	logger  *slog.Logger
}

func newBase(name string, logger *slog.Logger) *base {
	if logger == nil {
		logger = slog.Default()
	}
	return &base{name: name, handles: make(map[string]Handle), logger: logger.With("app", name)}
}

func (b *base) add(h Handle) {
	b.handles[h.Name()] = h
	b.order = append(b.order, h.Name())
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Handle(name string) (Handle, bool) {
	h, ok := b.handles[name]
	return h, ok
}

// Names lists store names in registration order
func (b *base) Names() []string {
	return append([]string(nil), b.order...)
}

func (b *base) Reset() {
	for _, name := range b.order {
		b.handles[name].Watchable().Reset()
	}
	b.logger.Info("Application state reset", "stores", len(b.order))
}

// Logout clears all stores; credentials live in the HTTP client's cookie jar
func (b *base) Logout() {
	b.Reset()
}

// attach publishes every store transition on the queue
func (b *base) attach(queue *events.EventQueue) {
	for _, name := range b.order {
		queue.Attach(b.name, b.handles[name].Watchable())
	}
}

// register adds every store's refresh to the reconciler
func (b *base) register(r *viewsync.Reconciler) {
	for _, name := range b.order {
		r.Register(b.name+"."+name, b.handles[name].Refresh)
	}
}

// Apps holds the three containers and the feeds they publish to
type Apps struct {
	Admin      *Admin
	Business   *Business
	Reviewer   *Reviewer
	Events     *events.EventQueue
	Reconciler *viewsync.Reconciler
}

// New builds all containers over one client, publishes their transitions on
// queue and registers their views with reconciler
func New(client *apiclient.Client, queue *events.EventQueue, reconciler *viewsync.Reconciler, opts Options) *Apps {
	apps := &Apps{
		Admin:      NewAdmin(client, opts),
		Business:   NewBusiness(client, opts),
		Reviewer:   NewReviewer(client, opts),
		Events:     queue,
		Reconciler: reconciler,
	}

	for _, c := range []*base{apps.Admin.base, apps.Business.base, apps.Reviewer.base} {
		if queue != nil {
			c.attach(queue)
		}
		if reconciler != nil {
			c.register(reconciler)
		}
	}
	if reconciler != nil {
		// mutations of the review board refresh both of its views
		reconciler.Attach(NameReviewer+"."+stores.NameReviews, apps.Reviewer.Board)
	}
	return apps
}

// Get returns the container called name
func (a *Apps) Get(name string) (Container, bool) {
	switch name {
	case NameAdmin:
		return a.Admin, true
	case NameBusiness:
		return a.Business, true
	case NameReviewer:
		return a.Reviewer, true
	default:
		return nil, false
	}
}

// Admin is the platform administration dashboard
type Admin struct {
	*base
	Companies     *stores.Companies
	Plans         *stores.Plans
	Features      *stores.Features
	Users         *stores.Users
	Subscriptions *stores.Subscriptions
	Tickets       *stores.Tickets
	Reports       *stores.Reports
	Settings      *stores.Settings
	Analytics     *stores.Analytics
}

func NewAdmin(client *apiclient.Client, opts Options) *Admin {
	so := opts.storeOptions()
	a := &Admin{
		base:          newBase(NameAdmin, opts.Logger),
		Companies:     stores.NewCompanies(client, stores.StaticPath("/companies"), so),
		Plans:         stores.NewPlans(client, so),
		Features:      stores.NewFeatures(client, so),
		Users:         stores.NewUsers(client, so),
		Subscriptions: stores.NewSubscriptions(client, stores.StaticPath("/subscriptions"), so),
		Tickets:       stores.NewTickets(client, stores.StaticPath("/tickets"), so),
		Reports:       stores.NewReports(client, so),
		Settings:      stores.NewSettings(client, stores.StaticPath("/settings"), so),
		Analytics:     stores.NewAnalytics(client, stores.StaticPath("/analytics"), so),
	}

	a.add(newCollectionHandle(a.Companies, parseInt64))
	a.add(newCollectionHandle(a.Plans, parseInt64))
	a.add(newCollectionHandle(a.Features, parseInt64))
	a.add(newCollectionHandle(a.Users, parseInt64))
	a.add(newCollectionHandle(a.Subscriptions, parseInt64))
	a.add(newCollectionHandle(a.Tickets, parseInt64))
	a.add(newCollectionHandle(a.Reports, parseInt64))
	a.add(&recordHandle[models.Settings, models.Settings]{rec: a.Settings, writable: true})
	a.add(&recordHandle[models.Analytics, struct{}]{rec: a.Analytics})
	return a
}

// Business is the portal of one company's owner. Every store is scoped to
// the active company.
type Business struct {
	*base
	companyID atomic.Int64

	Reviews       *stores.Reviews
	Invitations   *stores.Invitations
	Subscriptions *stores.Subscriptions
	Tickets       *stores.Tickets
	Analytics     *stores.Analytics
}

func NewBusiness(client *apiclient.Client, opts Options) *Business {
	so := opts.storeOptions()
	b := &Business{base: newBase(NameBusiness, opts.Logger)}

	b.Reviews = stores.NewReviews(client, b.scoped("reviews"), so)
	b.Invitations = stores.NewInvitations(client, b.scoped("invitations"), so)
	b.Subscriptions = stores.NewSubscriptions(client, b.scoped("subscriptions"), so)
	b.Tickets = stores.NewTickets(client, b.scoped("tickets"), so)
	b.Analytics = stores.NewAnalytics(client, b.scoped("analytics"), so)

	b.add(newCollectionHandle(b.Reviews, parseInt64))
	b.add(newCollectionHandle(b.Invitations, parseString))
	b.add(newCollectionHandle(b.Subscriptions, parseInt64))
	b.add(newCollectionHandle(b.Tickets, parseInt64))
	b.add(&recordHandle[models.Analytics, struct{}]{rec: b.Analytics})
	return b
}

func (b *Business) scoped(resource string) stores.PathFunc {
	return func() string {
		return fmt.Sprintf("/companies/%d/%s", b.companyID.Load(), resource)
	}
}

// CompanyID returns the active company, 0 when none is selected
func (b *Business) CompanyID() int64 {
	return b.companyID.Load()
}

// SwitchCompany makes id the active company and clears every store so no
// data of the previous company stays visible
func (b *Business) SwitchCompany(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid company id %d", ErrBadInput, id)
	}
	previous := b.companyID.Swap(id)
	if previous != id {
		b.Reset()
		b.logger.Info("Active company switched", "from", previous, "to", id)
	}
	return nil
}

// Reviewer is the public review site. Its review board lists every review,
// or one company's reviews once a company is selected.
type Reviewer struct {
	*base
	companyID atomic.Int64

	Companies *stores.Companies
	Board     *stores.ReviewBoard
}

func NewReviewer(client *apiclient.Client, opts Options) *Reviewer {
	so := opts.storeOptions()
	r := &Reviewer{base: newBase(NameReviewer, opts.Logger)}

	r.Companies = stores.NewCompanies(client, stores.StaticPath("/companies"), so)
	r.Board = stores.NewReviewBoard(client, r.reviewsPath, opts.pageSize(), so)

	r.add(readOnly(newCollectionHandle(r.Companies, parseInt64)))
	r.add(boardHandle(r.Board))
	r.add(&filteredHandle{view: r.Board.All})
	return r
}

func (r *Reviewer) reviewsPath() string {
	if id := r.companyID.Load(); id > 0 {
		return "/companies/" + strconv.FormatInt(id, 10) + "/reviews"
	}
	return "/reviews"
}

// SelectCompany narrows the review board to one company; 0 shows every
// review. Both board views are cleared when the selection changes.
func (r *Reviewer) SelectCompany(id int64) {
	if r.companyID.Swap(max(id, 0)) != max(id, 0) {
		r.Board.Reset()
	}
}

// CompanyID returns the selected company, 0 when none is selected
func (r *Reviewer) CompanyID() int64 {
	return r.companyID.Load()
}
