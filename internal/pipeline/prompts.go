package pipeline

// Prompt templates for the three inference-backed stages. Content lengths
// passed to the model are capped (expansion output is small; verification
// sees the first 2000 characters of a page, extraction the first 4000).

const expandSystemPrompt = `You are a search-query generation expert. Given a user's research request,
produce a JSON array of search queries to send to a web search API.

Each element MUST be a JSON object with these keys:
- "query"       : the search string (be specific, diverse, use different phrasings)
- "topic"       : high-level topic this query relates to
- "preferences" : list of user-stated preferences (e.g. ["recent", "peer-reviewed"])
- "priority"    : "low", "medium", or "high"

Generate 3-5 queries that cover different angles of the user's request.
Return ONLY the JSON array, no markdown fences, no commentary.`

// retryNote is appended to the expansion input when a previous pass
// under-delivered. It only changes what the model sees, never the state.
const retryNote = "\n\n[RETRY NOTE: Previous search yielded too few results. " +
	"Try broader or alternative queries.]"

const verifySystemPrompt = `You are a source credibility evaluator. Given a URL and the first 2000 characters
of its content, return a JSON object with exactly these keys:
- "credibility_score": float 0.0-1.0 (how trustworthy is this source?)
- "relevance_score": float 0.0-1.0 (how relevant is this to the user query?)

Return ONLY the JSON object, no markdown, no commentary.`

const extractSystemPrompt = `You are an expert data extraction analyst building a comparison engine.
Given the user's search query and the text of a webpage, extract all specific ENTITIES
that match the intent of the search (e.g., if the user searches for "startup incubators in India",
extract each incubator mentioned).

For each entity, extract relevant public METRICS as a flat dictionary of strings.
Example metrics: "Location", "Funding Amount", "Equity Taken", "Industries", "Notable Startups".

Return a JSON array of objects. Each object MUST have exactly these keys:
- "name": String (Entity name)
- "description": String (1-2 sentence description)
- "metrics": Object (Key-value pairs of extracted metrics/data points. Keys should be Title Case.)
- "priority_score": Float 0.0-1.0 (How well this entity matches the user's core intent)

Return ONLY the JSON array, no markdown fences, no explanation. If no relevant entities are found, return an empty array [].`

const (
	verifyContentLimit  = 2000
	extractContentLimit = 4000
	snippetLimit        = 500
)

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
