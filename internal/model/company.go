package model

// ScoreSource records which signal produced a contact's match score.
type ScoreSource string

const (
	ScoreSourceAI            ScoreSource = "ai"
	ScoreSourceDeterministic ScoreSource = "deterministic"
)

// Company is a candidate account produced by Discovery and enriched by Scoring.
type Company struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employeeCount,omitempty"`
	Location      string `json:"location,omitempty"`
	Website       string `json:"website,omitempty"`
	FoundedYear   int    `json:"foundedYear,omitempty"`
	MatchScore    *int   `json:"matchScore,omitempty"`
	MatchReason   string `json:"matchReason,omitempty"`
}

// EntityID implements review.Entity.
func (c Company) EntityID() string { return c.ID }

// Score returns the match score, or -1 when the company has not been scored.
func (c Company) Score() int {
	if c.MatchScore == nil {
		return -1
	}
	return *c.MatchScore
}

// CompanyRef is a weak reference from a contact to the company it works at.
// Name and size are denormalized for display.
type CompanyRef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employeeCount,omitempty"`
	Location      string `json:"location,omitempty"`
}

// RefOf builds the weak reference for c.
func RefOf(c Company) CompanyRef {
	return CompanyRef{
		ID:            c.ID,
		Name:          c.Name,
		Industry:      c.Industry,
		EmployeeCount: c.EmployeeCount,
		Location:      c.Location,
	}
}

// Contact is a person at a selected company.
type Contact struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Seniority   string      `json:"seniority,omitempty"`
	Company     CompanyRef  `json:"company"`
	Email       *string     `json:"email,omitempty"`
	Phone       *string     `json:"phone,omitempty"`
	LinkedIn    *string     `json:"linkedin,omitempty"`
	MatchScore  *int        `json:"matchScore,omitempty"`
	MatchReason string      `json:"matchReason,omitempty"`
	ScoreSource ScoreSource `json:"scoreSource,omitempty"`
	Rank        int         `json:"rank,omitempty"`
}

// EntityID implements review.Entity.
func (c Contact) EntityID() string { return c.ID }

// Score returns the match score, or -1 when the contact has not been scored.
func (c Contact) Score() int {
	if c.MatchScore == nil {
		return -1
	}
	return *c.MatchScore
}

// HasEmail reports whether a non-empty email is present.
func (c Contact) HasEmail() bool { return present(c.Email) }

// HasPhone reports whether a non-empty phone is present.
func (c Contact) HasPhone() bool { return present(c.Phone) }

// HasLinkedIn reports whether a non-empty LinkedIn URL is present.
func (c Contact) HasLinkedIn() bool { return present(c.LinkedIn) }

func present(s *string) bool {
	return s != nil && *s != ""
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
