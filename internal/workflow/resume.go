package workflow

import (
	"encoding/base64"
	"encoding/json"
)

// resumeToken is the opaque payload handed to a human reviewer. The
// checkpoint store only supports loading a task's latest checkpoint (not
// an arbitrary one by id), so the token's job is narrower than the
// teacher's: it names the task whose latest checkpoint a review decision
// should resume, and lets the review endpoint reject a token that does not
// match the task id in its path.
type resumeToken struct {
	TaskID string `json:"t"`
}

// encodeResumeToken creates the opaque string exposed over the review endpoint.
func encodeResumeToken(taskID string) string {
	data, _ := json.Marshal(resumeToken{TaskID: taskID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeResumeToken recovers the task id a reviewer's token names.
func decodeResumeToken(token string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	var t resumeToken
	if err := json.Unmarshal(data, &t); err != nil {
		return "", err
	}
	return t.TaskID, nil
}

// DecodeResumeToken is decodeResumeToken, exported for the API layer to
// validate a review request's token against its path's task id.
func DecodeResumeToken(token string) (string, error) {
	return decodeResumeToken(token)
}
