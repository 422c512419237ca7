package api

import (
	"fmt"
	"regexp"
)

// Room ids are shared out-of-band between people, so the alphabet stays
// URL- and voice-friendly. Usernames additionally allow underscores.
var (
	roomIDPattern   = regexp.MustCompile(`^[A-Za-z0-9-]{8,16}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

func validateRoomID(roomID string) error {
	if !roomIDPattern.MatchString(roomID) {
		return fmt.Errorf("room id must be 8-16 characters of [A-Za-z0-9-]")
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username must be 1-32 characters of [A-Za-z0-9_-]")
	}
	return nil
}
