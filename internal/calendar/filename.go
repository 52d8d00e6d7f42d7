package calendar

import (
	"fmt"
	"regexp"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// cancelIDLength is how much of the first expense ID a cancel file name keeps.
const cancelIDLength = 8

// PublishFilename names a batch publish file after its creation instant.
func PublishFilename(now time.Time) string {
	return fmt.Sprintf("giderler_%d.ics", now.UnixMilli())
}

// CancelFilename names a cancel file after the expense title and the start
// of the first cancelled expense's ID, so cancels of different members of one
// series never replace each other in a directory.
func CancelFilename(title, expenseID string) string {
	if len(expenseID) > cancelIDLength {
		expenseID = expenseID[:cancelIDLength]
	}
	name := "sil_" + unsafeFilenameChars.ReplaceAllString(title, "_")
	if expenseID != "" {
		name += "_" + unsafeFilenameChars.ReplaceAllString(expenseID, "_")
	}
	return name + ".ics"
}

// Filename picks the file name for doc. title and expenseID describe the
// first expense and are used for cancel documents.
func Filename(doc Document, title, expenseID string, now time.Time) string {
	if doc.Method == MethodCancel {
		return CancelFilename(title, expenseID)
	}
	return PublishFilename(now)
}
