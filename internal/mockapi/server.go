// Package mockapi is an in-memory stand-in for the platform's REST backend.
// It serves fixture data with the paginated envelopes and error bodies the
// real backend uses and is the development backend of `console mock-api`.
package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"reviewhub-console/internal/cache"
	sharedmiddleware "reviewhub-console/internal/middleware"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
)

const (
	serviceName = "reviewhub-mock-api"
	version     = "1.0.0"
	// SessionCookie is set by the mock on every response that lacks it
	SessionCookie = "reviewhub_session"
)

// Options configures a Server
type Options struct {
	// APIKeys, when set, are required in X-API-Key on every /api route but /health
	APIKeys []string
	// Latency delays every response; requests canceled meanwhile get no answer
	Latency time.Duration
	// IdempotencyTTL is how long bulk responses are replayed for
	IdempotencyTTL time.Duration
	Fixtures       *Fixtures
}

type failure struct {
	status  int
	message string
}

// Server is the mock backend
type Server struct {
	opts     Options
	fixtures Fixtures

	companies     *resource[models.Company, int64, models.CompanyInput, models.CompanyUpdate]
	reviews       *resource[models.Review, int64, models.ReviewInput, models.ReviewUpdate]
	plans         *resource[models.Plan, int64, models.PlanInput, models.PlanUpdate]
	features      *resource[models.Feature, int64, models.FeatureInput, models.FeatureUpdate]
	users         *resource[models.User, int64, models.UserInput, models.UserUpdate]
	subscriptions *resource[models.Subscription, int64, models.SubscriptionInput, models.SubscriptionUpdate]
	invitations   *resource[models.Invitation, string, models.InvitationInput, models.InvitationUpdate]
	tickets       *resource[models.Ticket, int64, models.TicketInput, models.TicketUpdate]
	reports       *resource[models.Report, int64, models.ReportInput, models.ReportUpdate]

	settingsMu sync.RWMutex
	settings   models.Settings

	failuresMu sync.RWMutex
	failures   map[string]failure

	idempotency *cache.TTLCache[[]byte]
}

// NewServer creates a mock backend seeded with opts.Fixtures, or with
// DefaultFixtures when nil
func NewServer(opts Options) *Server {
	fixtures := DefaultFixtures()
	if opts.Fixtures != nil {
		fixtures = *opts.Fixtures
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 2 * time.Minute
	}

	s := &Server{
		opts:        opts,
		fixtures:    fixtures,
		settings:    fixtures.Settings,
		failures:    make(map[string]failure),
		idempotency: cache.NewTTLCache[[]byte](opts.IdempotencyTTL, 30*time.Second),
	}
	s.buildResources()
	return s
}

// Close stops background work
func (s *Server) Close() {
	s.idempotency.Stop()
}

// Reseed restores every table to the fixtures
func (s *Server) Reseed() {
	s.companies.rows.reset(s.fixtures.Companies)
	s.reviews.rows.reset(s.fixtures.Reviews)
	s.plans.rows.reset(s.fixtures.Plans)
	s.features.rows.reset(s.fixtures.Features)
	s.users.rows.reset(s.fixtures.Users)
	s.subscriptions.rows.reset(s.fixtures.Subscriptions)
	s.invitations.rows.reset(s.fixtures.Invitations)
	s.tickets.rows.reset(s.fixtures.Tickets)
	s.reports.rows.reset(s.fixtures.Reports)

	s.settingsMu.Lock()
	s.settings = s.fixtures.Settings
	s.settingsMu.Unlock()
	s.idempotency.Clear()
}

// FailPath makes every request whose path under /api starts with prefix
// answer status with message, until ClearFailures
func (s *Server) FailPath(prefix string, status int, message string) {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	s.failures[prefix] = failure{status: status, message: message}
}

func (s *Server) ClearFailures() {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	s.failures = make(map[string]failure)
}

// Router returns the HTTP handler; all routes live under /api
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Group(func(r chi.Router) {
			if len(s.opts.APIKeys) > 0 {
				r.Use(sharedmiddleware.AuthMiddleware(s.opts.APIKeys))
			}
			r.Use(s.session)
			r.Use(s.latency)
			r.Use(s.injectFailures)

			r.Route("/companies", s.companies.routes)
			r.Route("/companies/{companyID}/reviews", s.reviews.routes)
			r.Route("/companies/{companyID}/invitations", s.invitations.routes)
			r.Route("/companies/{companyID}/tickets", s.tickets.routes)
			r.Route("/companies/{companyID}/subscriptions", s.subscriptions.routes)
			r.Get("/companies/{companyID}/analytics", s.analytics)
			r.Route("/reviews", s.reviews.routes)
			r.Route("/plans", s.plans.routes)
			r.Route("/features", s.features.routes)
			r.Route("/users", s.users.routes)
			r.Route("/subscriptions", s.subscriptions.routes)
			r.Route("/invitations", s.invitations.routes)
			r.Route("/tickets", s.tickets.routes)
			r.Route("/reports", s.reports.routes)
			r.Get("/analytics", s.analytics)
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.putSettings)
		})
	})

	return r
}

// health handles GET /api/health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   version,
		"timestamp": time.Now().UTC(),
	})
}

// analytics handles GET /api/analytics and /api/companies/{companyID}/analytics
func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	var companyID int64
	if raw := chi.URLParam(r, "companyID"); raw != "" {
		id, err := parseInt64(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid company id %q", raw))
			return
		}
		if _, ok := s.companies.rows.get(id); !ok {
			writeNotFound(w, "company", id)
			return
		}
		companyID = id
	}

	reviews := s.reviews.rows.snapshot(func(rv models.Review) bool {
		return companyID == 0 || rv.CompanyID == companyID
	})

	out := models.Analytics{RatingDistribution: map[string]int{}}
	replied, sum := 0, 0
	thisMonth := time.Now().UTC().Format("2006-01")
	for _, rv := range reviews {
		sum += rv.Rating
		out.RatingDistribution[strconv.Itoa(rv.Rating)]++
		if rv.Reply != "" {
			replied++
		}
		if strings.HasPrefix(rv.CreatedAt, thisMonth) {
			out.ReviewsThisMonth++
		}
	}
	out.TotalReviews = len(reviews)
	if len(reviews) > 0 {
		out.AverageRating = float64(sum) / float64(len(reviews))
		out.ResponseRate = float64(replied) / float64(len(reviews))
	}
	if companyID == 0 {
		out.TotalCompanies = len(s.companies.rows.snapshot(nil))
		out.TotalUsers = len(s.users.rows.snapshot(nil))
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	writeJSON(w, http.StatusOK, s.settings)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var next models.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body")
		return
	}

	var details []models.ErrorDetail
	if strings.TrimSpace(next.PlatformName) == "" {
		details = append(details, models.ErrorDetail{Field: "platformName", Issue: "Platform name is required"})
	}
	if next.DefaultPageSize <= 0 || next.DefaultPageSize > maxPageSize {
		details = append(details, models.ErrorDetail{Field: "defaultPageSize", Issue: fmt.Sprintf("Must be between 1 and %d", maxPageSize)})
	}
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Code: "validation_error", Message: "Settings validation failed", Details: details})
		return
	}

	s.settingsMu.Lock()
	s.settings = next
	s.settingsMu.Unlock()
	writeJSON(w, http.StatusOK, next)
}

// session sets a session cookie so cookie-credential clients have one to replay
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(SessionCookie); errors.Is(err, http.ErrNoCookie) {
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: uuid.NewString(), Path: "/", HttpOnly: true})
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			timer := time.NewTimer(s.opts.Latency)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")

		s.failuresMu.RLock()
		var (
			hit   failure
			found bool
		)
		for prefix, f := range s.failures {
			if strings.HasPrefix(path, prefix) {
				hit, found = f, true
				break
			}
		}
		s.failuresMu.RUnlock()

		if found {
			slog.Debug("Injected failure", "path", r.URL.Path, "status", hit.status)
			writeError(w, hit.status, "injected_failure", hit.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, models.ErrorResponse{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, singular string, id any) {
	writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("%s %v not found", singular, id))
}

func writeMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, errValidation) {
		writeError(w, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), errValidation.Error()+": "))
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}

func setStatus(status string) func(row models.Review) (models.Review, bool) {
	return func(row models.Review) (models.Review, bool) {
		row.Status = status
		return row, false
	}
}

func dismiss[T any](row T) (T, bool) {
	return row, true
}

// buildResources wires one resource per entity
func (s *Server) buildResources() {
	f := s.fixtures
	maxID := func(n int) int64 { return int64(n) }

	s.companies = &resource[models.Company, int64, models.CompanyInput, models.CompanyUpdate]{
		name:     "companies",
		singular: "company",
		rows:     newTable(f.Companies, sequence(maxID(len(f.Companies)))),
		envelope: springEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.CompanyInput) (models.Company, error) {
			if strings.TrimSpace(in.Name) == "" {
				return models.Company{}, invalid("Company name is required")
			}
			return models.Company{
				ID: id, Name: in.Name, Category: in.Category, Description: in.Description, Website: in.Website,
				Status: models.StatusPending, CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}, nil
		},
		apply: func(row models.Company, in models.CompanyUpdate) (models.Company, error) {
			row.Name = firstNonEmpty(in.Name, row.Name)
			row.Category = firstNonEmpty(in.Category, row.Category)
			row.Description = firstNonEmpty(in.Description, row.Description)
			row.Website = firstNonEmpty(in.Website, row.Website)
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status: func(c models.Company) string { return c.Status },
		text:   func(c models.Company) []string { return []string{c.Name, c.Category, c.Description} },
		ops: map[store.BulkOp]func(models.Company) (models.Company, bool){
			store.BulkApprove: func(c models.Company) (models.Company, bool) { c.Status = models.StatusApproved; return c, false },
			store.BulkReject:  func(c models.Company) (models.Company, bool) { c.Status = models.StatusRejected; return c, false },
		},
		idempotency: s.idempotency,
	}

	s.reviews = &resource[models.Review, int64, models.ReviewInput, models.ReviewUpdate]{
		name:     "reviews",
		singular: "review",
		rows:     newTable(f.Reviews, sequence(maxID(len(f.Reviews)))),
		envelope: envelope{"reviews", "currentPage", "totalPages", "totalItems"},
		parseID:  parseInt64,
		build: func(id int64, in models.ReviewInput) (models.Review, error) {
			if in.Rating < 1 || in.Rating > 5 {
				return models.Review{}, invalid("Rating must be between 1 and 5")
			}
			if strings.TrimSpace(in.Title) == "" {
				return models.Review{}, invalid("Title is required")
			}
			company, ok := s.companies.rows.get(in.CompanyID)
			if !ok {
				return models.Review{}, invalid("company %d does not exist", in.CompanyID)
			}
			return models.Review{
				ID: id, CompanyID: in.CompanyID, CompanyName: company.Name, Rating: in.Rating,
				Title: in.Title, Description: in.Description, Status: models.StatusPending,
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}, nil
		},
		apply: func(row models.Review, in models.ReviewUpdate) (models.Review, error) {
			if in.Rating != 0 {
				if in.Rating < 1 || in.Rating > 5 {
					return row, invalid("Rating must be between 1 and 5")
				}
				row.Rating = in.Rating
			}
			row.Title = firstNonEmpty(in.Title, row.Title)
			row.Description = firstNonEmpty(in.Description, row.Description)
			row.Status = firstNonEmpty(in.Status, row.Status)
			row.Reply = firstNonEmpty(in.Reply, row.Reply)
			return row, nil
		},
		status:  func(rv models.Review) string { return rv.Status },
		text:    func(rv models.Review) []string { return []string{rv.Title, rv.Description} },
		company: func(rv models.Review) int64 { return rv.CompanyID },
		ops: map[store.BulkOp]func(models.Review) (models.Review, bool){
			store.BulkApprove: setStatus(models.StatusApproved),
			store.BulkReject:  setStatus(models.StatusRejected),
			store.BulkDismiss: dismiss[models.Review],
		},
		idempotency: s.idempotency,
	}

	s.plans = &resource[models.Plan, int64, models.PlanInput, models.PlanUpdate]{
		name:     "plans",
		singular: "plan",
		rows:     newTable(f.Plans, sequence(maxID(len(f.Plans)))),
		envelope: itemsEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.PlanInput) (models.Plan, error) {
			if strings.TrimSpace(in.Name) == "" {
				return models.Plan{}, invalid("Plan name is required")
			}
			if in.Price < 0 {
				return models.Plan{}, invalid("Price cannot be negative")
			}
			return models.Plan{ID: id, Name: in.Name, Price: in.Price, Interval: firstNonEmpty(in.Interval, "month"), Features: in.Features, Active: true}, nil
		},
		apply: func(row models.Plan, in models.PlanUpdate) (models.Plan, error) {
			row.Name = firstNonEmpty(in.Name, row.Name)
			if in.Price != nil {
				if *in.Price < 0 {
					return row, invalid("Price cannot be negative")
				}
				row.Price = *in.Price
			}
			if in.Features != nil {
				row.Features = in.Features
			}
			if in.Active != nil {
				row.Active = *in.Active
			}
			return row, nil
		},
		text: func(p models.Plan) []string { return []string{p.Name} },
	}

	s.features = &resource[models.Feature, int64, models.FeatureInput, models.FeatureUpdate]{
		name:     "features",
		singular: "feature",
		rows:     newTable(f.Features, sequence(maxID(len(f.Features)))),
		envelope: itemsEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.FeatureInput) (models.Feature, error) {
			if strings.TrimSpace(in.Key) == "" {
				return models.Feature{}, invalid("Feature key is required")
			}
			return models.Feature{ID: id, Key: in.Key, Name: firstNonEmpty(in.Name, in.Key), Description: in.Description}, nil
		},
		apply: func(row models.Feature, in models.FeatureUpdate) (models.Feature, error) {
			row.Name = firstNonEmpty(in.Name, row.Name)
			row.Description = firstNonEmpty(in.Description, row.Description)
			if in.Enabled != nil {
				row.Enabled = *in.Enabled
			}
			return row, nil
		},
		text: func(ft models.Feature) []string { return []string{ft.Key, ft.Name} },
	}

	s.users = &resource[models.User, int64, models.UserInput, models.UserUpdate]{
		name:     "users",
		singular: "user",
		rows:     newTable(f.Users, sequence(maxID(len(f.Users)))),
		envelope: springEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.UserInput) (models.User, error) {
			if !strings.Contains(in.Email, "@") {
				return models.User{}, invalid("A valid email is required")
			}
			return models.User{ID: id, Name: in.Name, Email: in.Email, Role: firstNonEmpty(in.Role, "REVIEWER"), Status: models.StatusActive}, nil
		},
		apply: func(row models.User, in models.UserUpdate) (models.User, error) {
			row.Name = firstNonEmpty(in.Name, row.Name)
			row.Role = firstNonEmpty(in.Role, row.Role)
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status: func(u models.User) string { return u.Status },
		text:   func(u models.User) []string { return []string{u.Name, u.Email} },
	}

	s.subscriptions = &resource[models.Subscription, int64, models.SubscriptionInput, models.SubscriptionUpdate]{
		name:     "subscriptions",
		singular: "subscription",
		rows:     newTable(f.Subscriptions, sequence(maxID(len(f.Subscriptions)))),
		envelope: itemsEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.SubscriptionInput) (models.Subscription, error) {
			plan, ok := s.plans.rows.get(in.PlanID)
			if !ok {
				return models.Subscription{}, invalid("plan %d does not exist", in.PlanID)
			}
			return models.Subscription{
				ID: id, CompanyID: in.CompanyID, PlanID: plan.ID, PlanName: plan.Name,
				Status: models.StatusActive, StartDate: time.Now().UTC().Format(time.RFC3339),
			}, nil
		},
		apply: func(row models.Subscription, in models.SubscriptionUpdate) (models.Subscription, error) {
			if in.PlanID != 0 {
				plan, ok := s.plans.rows.get(in.PlanID)
				if !ok {
					return row, invalid("plan %d does not exist", in.PlanID)
				}
				row.PlanID, row.PlanName = plan.ID, plan.Name
			}
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status:  func(sub models.Subscription) string { return sub.Status },
		company: func(sub models.Subscription) int64 { return sub.CompanyID },
	}

	s.invitations = &resource[models.Invitation, string, models.InvitationInput, models.InvitationUpdate]{
		name:     "invitations",
		singular: "invitation",
		rows:     newTable(f.Invitations, uuid.NewString),
		envelope: itemsEnvelope,
		parseID:  parseString,
		build: func(id string, in models.InvitationInput) (models.Invitation, error) {
			if !strings.Contains(in.Email, "@") {
				return models.Invitation{}, invalid("A valid email is required")
			}
			return models.Invitation{ID: id, CompanyID: in.CompanyID, Email: in.Email, Status: models.StatusPending, CreatedAt: time.Now().UTC().Format(time.RFC3339)}, nil
		},
		apply: func(row models.Invitation, in models.InvitationUpdate) (models.Invitation, error) {
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status:  func(inv models.Invitation) string { return inv.Status },
		text:    func(inv models.Invitation) []string { return []string{inv.Email} },
		company: func(inv models.Invitation) int64 { return inv.CompanyID },
	}

	s.tickets = &resource[models.Ticket, int64, models.TicketInput, models.TicketUpdate]{
		name:     "tickets",
		singular: "ticket",
		rows:     newTable(f.Tickets, sequence(maxID(len(f.Tickets)))),
		envelope: itemsEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.TicketInput) (models.Ticket, error) {
			if strings.TrimSpace(in.Subject) == "" {
				return models.Ticket{}, invalid("Subject is required")
			}
			return models.Ticket{
				ID: id, CompanyID: in.CompanyID, Subject: in.Subject, Message: in.Message,
				Priority: firstNonEmpty(in.Priority, "MEDIUM"), Status: models.StatusOpen,
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}, nil
		},
		apply: func(row models.Ticket, in models.TicketUpdate) (models.Ticket, error) {
			row.Priority = firstNonEmpty(in.Priority, row.Priority)
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status:  func(t models.Ticket) string { return t.Status },
		text:    func(t models.Ticket) []string { return []string{t.Subject, t.Message} },
		company: func(t models.Ticket) int64 { return t.CompanyID },
	}

	s.reports = &resource[models.Report, int64, models.ReportInput, models.ReportUpdate]{
		name:     "reports",
		singular: "report",
		rows:     newTable(f.Reports, sequence(maxID(len(f.Reports)))),
		envelope: itemsEnvelope,
		parseID:  parseInt64,
		build: func(id int64, in models.ReportInput) (models.Report, error) {
			if _, ok := s.reviews.rows.get(in.ReviewID); !ok {
				return models.Report{}, invalid("review %d does not exist", in.ReviewID)
			}
			return models.Report{ID: id, ReviewID: in.ReviewID, Reason: in.Reason, Status: models.StatusPending, CreatedAt: time.Now().UTC().Format(time.RFC3339)}, nil
		},
		apply: func(row models.Report, in models.ReportUpdate) (models.Report, error) {
			row.Status = firstNonEmpty(in.Status, row.Status)
			return row, nil
		},
		status: func(rp models.Report) string { return rp.Status },
		text:   func(rp models.Report) []string { return []string{rp.Reason} },
		ops: map[store.BulkOp]func(models.Report) (models.Report, bool){
			store.BulkDismiss: dismiss[models.Report],
		},
		idempotency: s.idempotency,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
