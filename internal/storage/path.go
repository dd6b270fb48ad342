package storage

import (
	"fmt"
	"mime"
	"strings"
)

// sharePrefix is the key prefix under which shared files are stored.
const sharePrefix = "files/"

// ShareObjectKey returns the object key backing a file share.
//
//	id: "aZ3kP9qLm2Xw"
//	result: "files/aZ3kP9qLm2Xw"
func ShareObjectKey(shareID string) string {
	return sharePrefix + shareID
}

// ContentDisposition builds an attachment disposition for fileName,
// escaping characters that would break the header.
func ContentDisposition(fileName string) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, fileName)
	if d := mime.FormatMediaType("attachment", map[string]string{"filename": name}); d != "" {
		return d
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}
