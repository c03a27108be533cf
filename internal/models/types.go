package models

import (
	"strings"
	"time"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Entity statuses shared across the platform
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusDismissed = "DISMISSED"
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusOpen      = "OPEN"
	StatusClosed    = "CLOSED"
	StatusAccepted  = "ACCEPTED"
	StatusCanceled  = "CANCELED"
)

// NormalizeStatus turns a user-typed status such as "pending" into its
// stored form
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// Company is a business listed on the platform
type Company struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Description   string  `json:"description,omitempty"`
	Website       string  `json:"website,omitempty"`
	Status        string  `json:"status"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
	OwnerID       int64   `json:"ownerId,omitempty"`
	CreatedAt     string  `json:"createdAt,omitempty"`
}

func (c Company) EntityID() int64 { return c.ID }

type CompanyInput struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

type CompanyUpdate struct {
	Name        string `json:"name,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Review is a rating with text left by a reviewer for a company
type Review struct {
	ID          int64  `json:"id"`
	CompanyID   int64  `json:"companyId"`
	CompanyName string `json:"companyName,omitempty"`
	UserID      int64  `json:"userId,omitempty"`
	AuthorName  string `json:"authorName,omitempty"`
	Rating      int    `json:"rating"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Reply       string `json:"reply,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func (r Review) EntityID() int64 { return r.ID }

type ReviewInput struct {
	CompanyID   int64  `json:"companyId"`
	Rating      int    `json:"rating"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ReviewUpdate struct {
	Rating      int    `json:"rating,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Reply       string `json:"reply,omitempty"`
}

// Plan is a subscription plan offered to businesses
type Plan struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Interval string   `json:"interval"`
	Features []string `json:"features,omitempty"`
	Active   bool     `json:"active"`
}

func (p Plan) EntityID() int64 { return p.ID }

type PlanInput struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Interval string   `json:"interval"`
	Features []string `json:"features,omitempty"`
}

type PlanUpdate struct {
	Name     string   `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Features []string `json:"features,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

// Feature is a platform capability that plans can include
type Feature struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func (f Feature) EntityID() int64 { return f.ID }

type FeatureInput struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type FeatureUpdate struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (u User) EntityID() int64 { return u.ID }

type UserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UserUpdate struct {
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// Subscription binds a company to a plan
type Subscription struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"companyId"`
	PlanID    int64  `json:"planId"`
	PlanName  string `json:"planName,omitempty"`
	Status    string `json:"status"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

func (s Subscription) EntityID() int64 { return s.ID }

type SubscriptionInput struct {
	CompanyID int64 `json:"companyId"`
	PlanID    int64 `json:"planId"`
}

type SubscriptionUpdate struct {
	PlanID int64  `json:"planId,omitempty"`
	Status string `json:"status,omitempty"`
}

// Invitation asks a customer to review a company. Its id is the
// invitation token.
type Invitation struct {
	ID        string `json:"id"`
	CompanyID int64  `json:"companyId"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (i Invitation) EntityID() string { return i.ID }

type InvitationInput struct {
	CompanyID int64  `json:"companyId"`
	Email     string `json:"email"`
}

type InvitationUpdate struct {
	Status string `json:"status"`
}

// Ticket is a support request raised by a business
type Ticket struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"companyId,omitempty"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (t Ticket) EntityID() int64 { return t.ID }

type TicketInput struct {
	CompanyID int64  `json:"companyId,omitempty"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Priority  string `json:"priority,omitempty"`
}

type TicketUpdate struct {
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Report flags a review for moderation
type Report struct {
	ID         int64  `json:"id"`
	ReviewID   int64  `json:"reviewId"`
	Reason     string `json:"reason"`
	ReporterID int64  `json:"reporterId,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func (r Report) EntityID() int64 { return r.ID }

type ReportInput struct {
	ReviewID int64  `json:"reviewId"`
	Reason   string `json:"reason"`
}

type ReportUpdate struct {
	Status string `json:"status"`
}

// Analytics is the dashboard snapshot of an admin or a company
type Analytics struct {
	TotalReviews       int            `json:"totalReviews"`
	AverageRating      float64        `json:"averageRating"`
	RatingDistribution map[string]int `json:"ratingDistribution"`
	ReviewsThisMonth   int            `json:"reviewsThisMonth"`
	ResponseRate       float64        `json:"responseRate"`
	TotalCompanies     int            `json:"totalCompanies,omitempty"`
	TotalUsers         int            `json:"totalUsers,omitempty"`
}

// Settings is the platform or company settings document
type Settings struct {
	PlatformName      string   `json:"platformName"`
	SupportEmail      string   `json:"supportEmail"`
	DefaultPageSize   int      `json:"defaultPageSize"`
	ModerationEnabled bool     `json:"moderationEnabled"`
	Categories        []string `json:"categories,omitempty"`
}

// Event is one store transition published on the change feed
type Event struct {
	Offset    int64  `json:"offset"`
	Timestamp string `json:"timestamp"`
	App       string `json:"app"`
	Store     string `json:"store"`
	Kind      string `json:"kind"`
	Version   uint64 `json:"version"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

type EventsResponse struct {
	Events     []Event `json:"events"`
	NextOffset int64   `json:"nextOffset"`
	HasMore    bool    `json:"hasMore"`
	Count      int     `json:"count"`
}

// SyncStatus reports the state of view reconciliation
type SyncStatus struct {
	InProgress      bool      `json:"inProgress"`
	LastSyncSuccess bool      `json:"lastSyncSuccess"`
	LastSyncTime    time.Time `json:"lastSyncTime"`
	ViewCount       int       `json:"viewCount"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

// HealthResponse is the gateway health body
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}
