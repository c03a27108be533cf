package mockapi

import (
	"fmt"
	"time"

	"reviewhub-console/internal/models"
)

// Fixture sizes other packages' tests rely on
const (
	FixtureCompanies = 23
	// FixtureCompanyReviews reviews belong to company 1, five of them five-star
	FixtureCompanyReviews = 12
	FixtureFiveStar       = 5
)

// Fixtures is the seed data the mock backend starts from
type Fixtures struct {
	Companies     []models.Company
	Reviews       []models.Review
	Plans         []models.Plan
	Features      []models.Feature
	Users         []models.User
	Subscriptions []models.Subscription
	Invitations   []models.Invitation
	Tickets       []models.Ticket
	Reports       []models.Report
	Settings      models.Settings
}

var (
	companyNames = []string{
		"Blue Bottle Roasters", "Harbor Dental", "Northwind Movers", "Pixel Repair Lab", "Green Leaf Bistro",
		"Summit Fitness", "Brightside Plumbing", "Cedar Books", "Urban Paws Grooming", "Lumen Opticians",
		"Atlas Auto Care", "Maple Street Bakery", "Crescent Yoga", "Ironclad Security", "Seaside Rentals",
		"Orbit Coworking", "Willow Florist", "Redline Couriers", "Quartz Jewelers", "Nimbus Cloud Hosting",
		"Silverline Travel", "Oak & Ash Furniture", "Fjord Fish Market",
	}
	categories = []string{"Food", "Health", "Services", "Retail", "Technology"}

	// company 1's ratings; positions 0, 2, 4, 7 and 9 are five-star
	companyOneRatings = []int{5, 4, 5, 3, 5, 1, 2, 5, 4, 5, 3, 2}
	reviewTitles      = map[int]string{
		1: "Very disappointing",
		2: "Below expectations",
		3: "Okay overall",
		4: "Good experience",
		5: "Outstanding service",
	}
)

// DefaultFixtures builds the deterministic seed data set
func DefaultFixtures() Fixtures {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	stamp := func(days int) string { return base.AddDate(0, 0, days).Format(time.RFC3339) }

	var f Fixtures

	for i, name := range companyNames {
		status := models.StatusApproved
		if i >= 18 {
			status = models.StatusPending
		}
		f.Companies = append(f.Companies, models.Company{
			ID:          int64(i + 1),
			Name:        name,
			Category:    categories[i%len(categories)],
			Description: fmt.Sprintf("%s serves customers across the city.", name),
			Website:     fmt.Sprintf("https://company-%d.example.com", i+1),
			Status:      status,
			OwnerID:     int64(i%5 + 1),
			CreatedAt:   stamp(i),
		})
	}

	id := int64(0)
	addReview := func(companyID int64, rating int, status, body string) {
		id++
		f.Reviews = append(f.Reviews, models.Review{
			ID:          id,
			CompanyID:   companyID,
			CompanyName: companyNames[companyID-1],
			UserID:      id%15 + 1,
			AuthorName:  fmt.Sprintf("Reviewer %d", id%15+1),
			Rating:      rating,
			Title:       reviewTitles[rating],
			Description: body,
			Status:      status,
			CreatedAt:   stamp(int(id)),
		})
	}
	for i, rating := range companyOneRatings {
		body := fmt.Sprintf("Visit number %d, rated %d stars.", i+1, rating)
		switch i {
		case 0:
			body = "Great coffee and friendly staff."
		case 3:
			body = "The coffee was cold when it arrived."
		}
		addReview(1, rating, models.StatusApproved, body)
	}
	for c := int64(2); c <= 10; c++ {
		for j := 0; j < 2; j++ {
			rating := int(c+int64(j))%5 + 1
			status := models.StatusApproved
			if j == 1 && c%3 == 0 {
				status = models.StatusPending
			}
			addReview(c, rating, status, fmt.Sprintf("Review %d of %s.", j+1, companyNames[c-1]))
		}
	}

	f.Plans = []models.Plan{
		{ID: 1, Name: "Free", Price: 0, Interval: "month", Features: []string{"listing"}, Active: true},
		{ID: 2, Name: "Pro", Price: 49, Interval: "month", Features: []string{"listing", "replies", "invitations"}, Active: true},
		{ID: 3, Name: "Enterprise", Price: 499, Interval: "year", Features: []string{"listing", "replies", "invitations", "analytics", "api"}, Active: true},
	}

	for i, key := range []string{"listing", "replies", "invitations", "analytics", "api"} {
		f.Features = append(f.Features, models.Feature{
			ID:      int64(i + 1),
			Key:     key,
			Name:    fmt.Sprintf("Feature %s", key),
			Enabled: key != "api",
		})
	}

	roles := []string{"ADMIN", "BUSINESS", "REVIEWER"}
	for i := 1; i <= 15; i++ {
		status := models.StatusActive
		if i%7 == 0 {
			status = models.StatusInactive
		}
		f.Users = append(f.Users, models.User{
			ID:        int64(i),
			Name:      fmt.Sprintf("User %d", i),
			Email:     fmt.Sprintf("user%d@example.com", i),
			Role:      roles[i%len(roles)],
			Status:    status,
			CreatedAt: stamp(i),
		})
	}

	for i := 1; i <= 8; i++ {
		f.Subscriptions = append(f.Subscriptions, models.Subscription{
			ID:        int64(i),
			CompanyID: int64(i),
			PlanID:    int64(i%3 + 1),
			PlanName:  f.Plans[i%3].Name,
			Status:    models.StatusActive,
			StartDate: stamp(i),
		})
	}

	for i := 1; i <= 4; i++ {
		status := models.StatusPending
		if i == 1 {
			status = models.StatusAccepted
		}
		f.Invitations = append(f.Invitations, models.Invitation{
			ID:        fmt.Sprintf("inv-%04d", i),
			CompanyID: 1,
			Email:     fmt.Sprintf("customer%d@example.com", i),
			Status:    status,
			CreatedAt: stamp(i),
		})
	}

	for i := 1; i <= 6; i++ {
		status := models.StatusOpen
		if i%3 == 0 {
			status = models.StatusClosed
		}
		f.Tickets = append(f.Tickets, models.Ticket{
			ID:        int64(i),
			CompanyID: int64((i-1)/3 + 1),
			Subject:   fmt.Sprintf("Support request %d", i),
			Message:   "Our listing shows an outdated address.",
			Priority:  []string{"LOW", "MEDIUM", "HIGH"}[i%3],
			Status:    status,
			CreatedAt: stamp(i),
		})
	}

	// review 2 is reported three times, review 5 twice
	for i, reviewID := range []int64{5, 2, 9, 2, 5, 14, 2} {
		f.Reports = append(f.Reports, models.Report{
			ID:         int64(i + 1),
			ReviewID:   reviewID,
			Reason:     []string{"spam", "offensive", "off-topic"}[i%3],
			ReporterID: int64(i%15 + 1),
			Status:     models.StatusPending,
			CreatedAt:  stamp(i),
		})
	}

	f.Settings = models.Settings{
		PlatformName:      "ReviewHub",
		SupportEmail:      "support@reviewhub.example.com",
		DefaultPageSize:   10,
		ModerationEnabled: true,
		Categories:        categories,
	}

	return f
}
