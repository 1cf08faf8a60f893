package testutil

// YardDepends is the reference dependency edge list: (parent, child) pairs
// forming a seven-node DAG. home/yard/lawn/mow has exactly four
// descendants.
var YardDepends = [][2]string{
	{"home/yard/season/spring", "home/yard/lawn/get_gas"},
	{"home/yard/lawn/get_gas", "home/yard/lawn/mow"},
	{"home/yard/lawn/mow", "home/yard/lawn/compost_clippings"},
	{"home/yard/lawn/mow", "home/yard/lawn/edge_trim"},
	{"home/yard/lawn/compost_clippings", "home/yard/garden/mulch"},
	{"home/yard/lawn/edge_trim", "home/yard/paths/sweep"},
}

// YardInternal is the internal node of YardDepends used for partial-log
// scenarios.
const YardInternal = "home/yard/lawn/mow"

// YardDescendants are the descendants of YardInternal.
var YardDescendants = []string{
	"home/yard/lawn/compost_clippings",
	"home/yard/lawn/edge_trim",
	"home/yard/garden/mulch",
	"home/yard/paths/sweep",
}

// YardJobs returns every node of YardDepends in first-seen order.
func YardJobs() []string {
	seen := make(map[string]bool)
	var jobs []string
	for _, edge := range YardDepends {
		for _, job := range edge {
			if !seen[job] {
				seen[job] = true
				jobs = append(jobs, job)
			}
		}
	}
	return jobs
}
