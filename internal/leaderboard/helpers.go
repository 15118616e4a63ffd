package leaderboard

import ws "github.com/Lownheur/prjt-web/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:       i + 1,
			PlayerID:   e.PlayerID.String(),
			Points:     e.Points,
			Percentage: e.BestPercentage,
			Sessions:   e.Sessions,
		}
	}
	return result
}
