package model

// Section is one top-level view of the dashboard.
type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionMarkets   Section = "markets"
	SectionPortfolio Section = "portfolio"
	SectionPositions Section = "positions"
	SectionHistory   Section = "history"
	SectionDeposits  Section = "deposits"
	SectionProfile   Section = "profile"
)

// Sections lists every section in navigation order. Keyboard shortcuts
// 1..7 address them by position.
var Sections = []Section{
	SectionDashboard,
	SectionMarkets,
	SectionPortfolio,
	SectionPositions,
	SectionHistory,
	SectionDeposits,
	SectionProfile,
}

var sectionTitles = map[Section]string{
	SectionDashboard: "Dashboard",
	SectionMarkets:   "Markets",
	SectionPortfolio: "Portfolio",
	SectionPositions: "Positions",
	SectionHistory:   "Transaction History",
	SectionDeposits:  "Deposits",
	SectionProfile:   "Profile",
}

// Valid reports whether s names a known section.
func (s Section) Valid() bool {
	_, ok := sectionTitles[s]
	return ok
}

// Title is the page title shown while s is active.
func (s Section) Title() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return sectionTitles[SectionDashboard]
}

// SectionByShortcut maps a 1-based shortcut index to its section.
func SectionByShortcut(index int) (Section, bool) {
	if index < 1 || index > len(Sections) {
		return "", false
	}
	return Sections[index-1], true
}
