package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mission-cli/internal/model"
)

func fixtureProfile(locations ...string) model.Profile {
	return model.Profile{
		Industries:   []string{"SaaS"},
		CompanySizes: []string{"51-200"},
		Locations:    locations,
		TargetTitles: []string{"VP Sales"},
	}
}

func fixtureContact() model.Contact {
	return model.Contact{
		ID:    "p1",
		Name:  "Dana Reyes",
		Title: "VP Sales",
		Company: model.CompanyRef{
			ID:            "c1",
			Name:          "Northwind Cloud",
			Industry:      "SaaS",
			EmployeeCount: 125,
		},
		Email: model.StrPtr("dana@northwind.example"),
	}
}

func sum(b map[string]int) int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

func TestContact_Fixture(t *testing.T) {
	t.Run("nationwide", func(t *testing.T) {
		r := Contact(fixtureContact(), fixtureProfile("nationwide"), 0)
		assert.Equal(t, 95, r.Score)
		assert.Equal(t, map[string]int{
			CriterionTitle:        25,
			CriterionIndustry:     20,
			CriterionSize:         20,
			CriterionLocation:     15,
			CriterionAvoid:        10,
			CriterionCompleteness: 5,
		}, r.Breakdown)
	})

	t.Run("regional without upstream fit", func(t *testing.T) {
		r := Contact(fixtureContact(), fixtureProfile("Texas"), 0)
		assert.Equal(t, 80, r.Score)
		assert.Equal(t, 0, r.Breakdown[CriterionLocation])
	})

	t.Run("regional with upstream fit", func(t *testing.T) {
		r := Contact(fixtureContact(), fixtureProfile("Texas"), 9)
		assert.Equal(t, 89, r.Score)
	})
}

func TestContact_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  int
	}{
		{"exact", "VP Sales", 25},
		{"case insensitive", "vp SALES", 25},
		{"candidate contains target", "Senior VP Sales, EMEA", 20},
		{"target contains candidate", "Sales", 20},
		{"no overlap", "Head of Engineering", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixtureContact()
			c.Title = tt.title
			r := Contact(c, fixtureProfile("nationwide"), 0)
			assert.Equal(t, tt.want, r.Breakdown[CriterionTitle])
		})
	}
}

func TestContact_MissingTargetsContributeZero(t *testing.T) {
	r := Contact(fixtureContact(), model.Profile{}, 15)
	assert.Equal(t, 0, r.Breakdown[CriterionTitle])
	assert.Equal(t, 0, r.Breakdown[CriterionIndustry])
	assert.Equal(t, 0, r.Breakdown[CriterionSize])
	assert.Equal(t, 0, r.Breakdown[CriterionLocation])
	assert.Equal(t, 15, r.Score) // avoid clear + email
}

func TestContact_AvoidList(t *testing.T) {
	p := fixtureProfile("nationwide")
	p.AvoidList = "globex, NORTHWIND"
	r := Contact(fixtureContact(), p, 0)
	assert.Equal(t, 0, r.Breakdown[CriterionAvoid])
	assert.Equal(t, 85, r.Score)

	p.AvoidList = "globex, initech"
	r = Contact(fixtureContact(), p, 0)
	assert.Equal(t, 10, r.Breakdown[CriterionAvoid])
}

func TestContact_Completeness(t *testing.T) {
	c := fixtureContact()
	c.LinkedIn = model.StrPtr("https://linkedin.com/in/dana")
	c.Phone = model.StrPtr("+1 555 0100")
	r := Contact(c, fixtureProfile("nationwide"), 0)
	assert.Equal(t, 10, r.Breakdown[CriterionCompleteness])
	assert.Equal(t, 100, r.Score)

	c.Email = nil
	r = Contact(c, fixtureProfile("nationwide"), 0)
	assert.Equal(t, 5, r.Breakdown[CriterionCompleteness])
}

func TestContact_SizeBounds(t *testing.T) {
	for _, n := range []int{51, 200} {
		c := fixtureContact()
		c.Company.EmployeeCount = n
		assert.Equal(t, 20, Contact(c, fixtureProfile(), 0).Breakdown[CriterionSize], "employees=%d", n)
	}
	for _, n := range []int{0, 50, 201} {
		c := fixtureContact()
		c.Company.EmployeeCount = n
		assert.Equal(t, 0, Contact(c, fixtureProfile(), 0).Breakdown[CriterionSize], "employees=%d", n)
	}
}

func TestContact_ZeroWidthSizeBand(t *testing.T) {
	for _, band := range []string{"0", "0-0"} {
		p := fixtureProfile()
		p.CompanySizes = []string{band}
		assert.Equal(t, 0, Contact(fixtureContact(), p, 0).Breakdown[CriterionSize], "band=%s", band)
	}
	p := fixtureProfile()
	p.CompanySizes = []string{"100+"}
	assert.Equal(t, 20, Contact(fixtureContact(), p, 0).Breakdown[CriterionSize])
}

func TestContact_ScoreIsSumAndBounded(t *testing.T) {
	titles := []string{"", "VP Sales", "Sales", "CTO"}
	industries := []string{"", "SaaS", "Healthcare"}
	sizes := []int{0, 10, 125, 5000}
	upstream := []int{-5, 0, 7, 40}
	avoid := []string{"", "northwind", "globex"}

	for _, title := range titles {
		for _, ind := range industries {
			for _, size := range sizes {
				for _, up := range upstream {
					for _, av := range avoid {
						c := fixtureContact()
						c.Title = title
						c.Company.Industry = ind
						c.Company.EmployeeCount = size
						c.Phone = model.StrPtr("555")
						p := fixtureProfile("Ohio")
						p.AvoidList = av
						r := Contact(c, p, up)
						assert.Equal(t, sum(r.Breakdown), r.Score)
						assert.GreaterOrEqual(t, r.Score, 0)
						assert.LessOrEqual(t, r.Score, 100)
					}
				}
			}
		}
	}
}

func TestReconcile(t *testing.T) {
	s, src := Reconcile(model.IntPtr(72), 40)
	assert.Equal(t, 72, s)
	assert.Equal(t, model.ScoreSourceAI, src)

	s, src = Reconcile(nil, 40)
	assert.Equal(t, 40, s)
	assert.Equal(t, model.ScoreSourceDeterministic, src)

	s, _ = Reconcile(model.IntPtr(140), 0)
	assert.Equal(t, 100, s)
}

func TestLocationPoints(t *testing.T) {
	p := fixtureProfile("Texas", "Denver")
	assert.Equal(t, MaxLocation, LocationPoints("Austin, Texas", p))
	assert.Equal(t, MaxLocation, LocationPoints("denver", p))
	assert.Zero(t, LocationPoints("Boston, MA", p))
	assert.Zero(t, LocationPoints("", p))
	assert.Zero(t, LocationPoints("Austin", fixtureProfile()))

	c := fixtureContact()
	c.Company.Location = "Austin, Texas"
	assert.Equal(t, 95, Contact(c, p, LocationPoints(c.Company.Location, p)).Score)
}
