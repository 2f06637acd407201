package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadKeyIndex parses a "<key><sep><n>" payload such as "3f2a9c1e.2|1".
// The split happens at the last sep, so key may contain sep.
func PayloadKeyIndex(c tele.Context, sep string) (string, int, error) {
	p := CallbackPayload(c)
	i := strings.LastIndex(p, sep)
	if sep == "" || i <= 0 {
		return "", 0, strconv.ErrSyntax
	}
	n, err := strconv.Atoi(p[i+len(sep):])
	if err != nil {
		return "", 0, err
	}
	return p[:i], n, nil
}
