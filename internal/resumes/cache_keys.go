package resumes

func resumeKey(id string) string { return "resume:" + id }

func profileListKey(profileID string) string { return "resumes:profile:" + profileID }

func userListKey(userID string) string { return "resumes:user:" + userID }

// affectedKeys lists every cached read a write to res can change.
func affectedKeys(res Resume) []string {
	keys := []string{resumeKey(res.ID)}
	if res.ProfileID != "" {
		keys = append(keys, profileListKey(res.ProfileID))
	}
	if res.UserID != "" {
		keys = append(keys, userListKey(res.UserID))
	}
	return keys
}
