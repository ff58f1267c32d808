// Package tg implements provider B: the messaging-platform export source
// (spec.md §6). Unlike xtream, it has no catalog-listing API to scan;
// messages arrive as a push export per channel, consumed by a
// ChannelService registered with the supervisor's ChannelSupervisor.
package tg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
)

// ExportMessage is one element of provider B's message export, per
// spec.md §6: a chatId plus ordered messages of
// {ExportText, ExportVideo, ExportOtherRaw}. Raw media metadata is
// passed through unmodified; no title cleaning happens at this layer.
type ExportMessage struct {
	ChatID         int64
	MessageID      int64
	Title          string
	EpisodeTitle   string
	Caption        string
	FileName       string
	ExportText     string
	ExportVideo    string
	ExportOtherRaw string
	FileID         int64
	RemoteID       string
	MimeType       string
}

// SourceType always returns keycodec.SourceTG.
func SourceType() keycodec.SourceType { return keycodec.SourceTG }

// resolveTitle applies spec.md §6's title selection order:
// title > episodeTitle > caption > fileName > "Untitled Media <messageId>".
func resolveTitle(msg ExportMessage) string {
	for _, candidate := range []string{msg.Title, msg.EpisodeTitle, msg.Caption, msg.FileName} {
		if candidate != "" {
			return candidate
		}
	}
	return fmt.Sprintf("Untitled Media %d", msg.MessageID)
}

// providerItemID is the sourceKey-scoped identifier for one export
// message: its messageId, stringified.
func providerItemID(msg ExportMessage) string {
	return strconv.FormatInt(msg.MessageID, 10)
}

// buildMediaURI builds the tg:// playback URI shape preserved by
// spec.md §6: tg://file/<fileId>?chatId=<c>&messageId=<m>[&remoteId=…][&mimeType=…],
// requiring at least one of fileId>0 or a non-empty remoteId.
func buildMediaURI(chatID, messageID, fileID int64, remoteID, mimeType string) (string, error) {
	if fileID <= 0 && remoteID == "" {
		return "", fmt.Errorf("tg: media uri requires fileId>0 or a non-empty remoteId (chatId=%d messageId=%d)", chatID, messageID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tg://file/%d?chatId=%d&messageId=%d", fileID, chatID, messageID)
	if remoteID != "" {
		fmt.Fprintf(&b, "&remoteId=%s", remoteID)
	}
	if mimeType != "" {
		fmt.Fprintf(&b, "&mimeType=%s", mimeType)
	}
	return b.String(), nil
}
