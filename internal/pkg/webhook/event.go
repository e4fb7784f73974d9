package webhook

import "encoding/json"

// Event types handled by the router. Anything else is logged and ignored.
const (
	EventPush   = "push"
	EventIssues = "issues"
	EventStar   = "star"
	EventWatch  = "watch"
	EventPing   = "ping"
)

// InboundEvent is one raw webhook delivery as received on the wire.
// RawBody is kept unparsed so the stored payload matches the signed bytes.
type InboundEvent struct {
	DeliveryID string `json:"delivery_id"`
	EventType  string `json:"event_type"`
	RawBody    []byte `json:"raw_body"`
}

// Commit is the slice of a push payload the summaries and reports need.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
}

// PushPayload covers pushes to a ref.
type PushPayload struct {
	Ref    string `json:"ref"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits    []Commit `json:"commits"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// IssuesPayload covers issue lifecycle actions.
type IssuesPayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	} `json:"issue"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// StarPayload covers starring and unstarring.
type StarPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName        string `json:"full_name"`
		StargazersCount int    `json:"stargazers_count"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// WatchPayload covers watch actions against the repository.
type WatchPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// repoName extracts repository.full_name from any payload shape, for logs.
func repoName(rawBody []byte) string {
	var envelope struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil || envelope.Repository.FullName == "" {
		return "unknown"
	}
	return envelope.Repository.FullName
}
