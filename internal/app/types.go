package app

import "strings"

// Participant is one player's contribution inside a river race clan entry.
type Participant struct {
	Tag            string `json:"tag"`
	Name           string `json:"name"`
	Fame           int    `json:"fame"`
	RepairPoints   int    `json:"repairPoints"`
	BoatAttacks    int    `json:"boatAttacks"`
	DecksUsed      int    `json:"decksUsed"`
	DecksUsedToday int    `json:"decksUsedToday"`
}

// RaceClan represents a clan inside a current race or a log standing
type RaceClan struct {
	Tag          string        `json:"tag"`
	Name         string        `json:"name"`
	Fame         int           `json:"fame"`
	RepairPoints int           `json:"repairPoints"`
	FinishTime   string        `json:"finishTime"`
	Participants []Participant `json:"participants"`
}

// CurrentRiverRace represents the response from /clans/{tag}/currentriverrace.
// Week identity fields are pointers because the upstream API omits them at times.
type CurrentRiverRace struct {
	State        string     `json:"state"`
	SeasonID     *int       `json:"seasonId"`
	SectionIndex *int       `json:"sectionIndex"`
	PeriodIndex  *int       `json:"periodIndex"`
	PeriodType   string     `json:"periodType"`
	Clan         RaceClan   `json:"clan"`
	Clans        []RaceClan `json:"clans"`
}

// RaceStanding is one clan's final placement in a completed river race
type RaceStanding struct {
	Rank         int      `json:"rank"`
	TrophyChange int      `json:"trophyChange"`
	Clan         RaceClan `json:"clan"`
}

// RiverRaceLogEntry represents one completed week from /clans/{tag}/riverracelog
type RiverRaceLogEntry struct {
	SeasonID     int            `json:"seasonId"`
	SectionIndex int            `json:"sectionIndex"`
	CreatedDate  string         `json:"createdDate"`
	IsColosseum  *bool          `json:"isColosseum"`
	PeriodType   string         `json:"periodType"`
	Standings    []RaceStanding `json:"standings"`
}

// RiverRaceLogResponse wraps the paged race log
type RiverRaceLogResponse struct {
	Items []RiverRaceLogEntry `json:"items"`
}

// StandingFor returns the standing of the given clan, if present.
func (e RiverRaceLogEntry) StandingFor(clanTag string) (*RaceStanding, bool) {
	want := NormalizeTag(clanTag)
	for i := range e.Standings {
		if NormalizeTag(e.Standings[i].Clan.Tag) == want {
			return &e.Standings[i], true
		}
	}
	return nil, false
}

// ClanMember represents a roster entry from /clans/{tag}/members
type ClanMember struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	LastSeen          string `json:"lastSeen"`
	ExpLevel          int    `json:"expLevel"`
	Trophies          int    `json:"trophies"`
	ClanRank          int    `json:"clanRank"`
	PreviousClanRank  int    `json:"previousClanRank"`
	Donations         int    `json:"donations"`
	DonationsReceived int    `json:"donationsReceived"`
}

// ClanMembersResponse wraps the member list
type ClanMembersResponse struct {
	Items []ClanMember `json:"items"`
}

// Clan represents the response from /clans/{tag}
type Clan struct {
	Tag             string       `json:"tag"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	ClanScore       int          `json:"clanScore"`
	ClanWarTrophies int          `json:"clanWarTrophies"`
	Members         int          `json:"members"`
	MemberList      []ClanMember `json:"memberList"`
}

// Member roles as reported by the API
const (
	RoleMember   = "member"
	RoleElder    = "elder"
	RoleCoLeader = "coleader"
	RoleLeader   = "leader"
)

// NormalizeTag upper-cases a player or clan tag and guarantees a single leading '#'.
// An empty or whitespace-only input yields "".
func NormalizeTag(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// NormalizeRole lower-cases a role and folds "coLeader" spellings together.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	role = strings.ReplaceAll(role, "-", "")
	role = strings.ReplaceAll(role, "_", "")
	return role
}
