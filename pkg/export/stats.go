package export

import (
	"sort"

	"github.com/samber/lo"
)

// PlayerStat is one player's record across an export.
type PlayerStat struct {
	Name    string
	Games   int
	Wins    int
	Losses  int
	AsSente int
	AsGote  int
}

// WinRate is wins over games, 0 with no games.
func (p PlayerStat) WinRate() float64 {
	if p.Games == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Games)
}

// PlayerStats tallies wins and losses per player. Players with an empty
// name are skipped. The result is ordered by games played, then name.
func PlayerStats(records []GameRecord) []PlayerStat {
	byName := make(map[string]*PlayerStat)
	add := func(name string, sente, won bool) {
		if name == "" {
			return
		}
		entry, ok := byName[name]
		if !ok {
			entry = &PlayerStat{Name: name}
			byName[name] = entry
		}
		entry.Games++
		if won {
			entry.Wins++
		} else {
			entry.Losses++
		}
		if sente {
			entry.AsSente++
		} else {
			entry.AsGote++
		}
	}
	for _, r := range records {
		add(r.SentePlayer, true, r.IsSenteWin)
		add(r.GotePlayer, false, !r.IsSenteWin)
	}

	stats := lo.Map(lo.Values(byName), func(p *PlayerStat, _ int) PlayerStat { return *p })
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Games != stats[j].Games {
			return stats[i].Games > stats[j].Games
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}
