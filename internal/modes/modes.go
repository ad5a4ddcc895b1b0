// Package modes holds the static catalog of supported team configurations.
package modes

import "fmt"

// GameMode describes one supported team configuration. PlayerCount 0 means
// the player cap is variable (FFA-style, chosen at game creation) and an
// empty TeamSizes list means the game has no fixed teams.
type GameMode struct {
	Key         string
	PlayerCount int
	TeamSizes   []int
	Randomize   bool
	Name        string
}

// Teams returns the number of fixed teams in the mode.
func (m GameMode) Teams() int {
	return len(m.TeamSizes)
}

// FFA reports whether the mode is a free-for-all (no fixed teams).
func (m GameMode) FFA() bool {
	return len(m.TeamSizes) == 0
}

// catalog is the fixed set of game modes, seeded into the database at
// startup and matched against the mode name assembled by the game-creation
// flow. Team sizes are listed per team to allow asymmetric modes later.
var catalog = []GameMode{
	{Key: "ffa", PlayerCount: 0, TeamSizes: nil, Randomize: false, Name: "FFA"},
	{Key: "duel", PlayerCount: 2, TeamSizes: nil, Randomize: false, Name: "1v1"},
	{Key: "fixed2v2", PlayerCount: 4, TeamSizes: []int{2, 2}, Randomize: false, Name: "2v2 Fixed Teams"},
	{Key: "fixed3v3", PlayerCount: 6, TeamSizes: []int{3, 3}, Randomize: false, Name: "3v3 Fixed Teams"},
	{Key: "fixed4v4", PlayerCount: 8, TeamSizes: []int{4, 4}, Randomize: false, Name: "4v4 Fixed Teams"},
	{Key: "fixed2v2v2", PlayerCount: 6, TeamSizes: []int{2, 2, 2}, Randomize: false, Name: "2v2v2 Fixed Teams"},
	{Key: "fixed2v2v2v2", PlayerCount: 8, TeamSizes: []int{2, 2, 2, 2}, Randomize: false, Name: "2v2v2v2 Fixed Teams"},
	{Key: "random2v2", PlayerCount: 4, TeamSizes: []int{2, 2}, Randomize: true, Name: "2v2 Random Teams"},
	{Key: "random3v3", PlayerCount: 6, TeamSizes: []int{3, 3}, Randomize: true, Name: "3v3 Random Teams"},
	{Key: "random4v4", PlayerCount: 8, TeamSizes: []int{4, 4}, Randomize: true, Name: "4v4 Random Teams"},
	{Key: "random2v2v2", PlayerCount: 6, TeamSizes: []int{2, 2, 2}, Randomize: true, Name: "2v2v2 Random Teams"},
	{Key: "random2v2v2v2", PlayerCount: 8, TeamSizes: []int{2, 2, 2, 2}, Randomize: true, Name: "2v2v2v2 Random Teams"},
	{Key: "ai", PlayerCount: 0, TeamSizes: nil, Randomize: false, Name: "vs AI"},
}

// All returns every catalog entry in declaration order. The returned slice
// is a copy; callers may not mutate the catalog.
func All() []GameMode {
	out := make([]GameMode, len(catalog))
	copy(out, catalog)
	return out
}

// ByName resolves a mode by its display name (e.g. "2v2 Fixed Teams").
func ByName(name string) (GameMode, error) {
	for _, m := range catalog {
		if m.Name == name {
			return m, nil
		}
	}
	return GameMode{}, fmt.Errorf("modes: unknown mode %q", name)
}

// ByKey resolves a mode by its canonical key (e.g. "fixed2v2").
func ByKey(key string) (GameMode, error) {
	for _, m := range catalog {
		if m.Key == key {
			return m, nil
		}
	}
	return GameMode{}, fmt.Errorf("modes: unknown mode key %q", key)
}
