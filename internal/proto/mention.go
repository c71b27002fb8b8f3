package proto

import "regexp"

var mentionPattern = regexp.MustCompile(`<<!(.{16})>>`)

// MentionToken embeds uuid in a message body so the owner gets is_mentioned.
func MentionToken(uuid string) string {
	return "<<!" + uuid + ">>"
}

// ExtractMentions returns the uuid of every mention in body, in order, duplicates kept.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, m[1])
	}
	return mentions
}
