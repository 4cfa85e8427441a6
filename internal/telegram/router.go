package telegram

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"natalia_bot/internal/feature/admin"
)

// messageKind is the handler class of an inbound message. Classification
// follows a fixed precedence and the first match wins.
type messageKind int

const (
	kindIgnored messageKind = iota
	kindCommand
	kindNewMembers
	kindLeftMember
	kindPhoto
	kindSticker
	kindVideo
	kindLinkOrHashtag
	kindDocument
	kindPrivateText
	kindGroupText
)

func (k messageKind) String() string {
	switch k {
	case kindCommand:
		return "command"
	case kindNewMembers:
		return "new_members"
	case kindLeftMember:
		return "left_member"
	case kindPhoto:
		return "photo"
	case kindSticker:
		return "sticker"
	case kindVideo:
		return "video"
	case kindLinkOrHashtag:
		return "link_or_hashtag"
	case kindDocument:
		return "document"
	case kindPrivateText:
		return "private_text"
	case kindGroupText:
		return "group_text"
	default:
		return "ignored"
	}
}

type commandFunc func(ctx context.Context, msg *models.Message) error

type command struct {
	restricted bool
	run        commandFunc
}

// parseCommand extracts the lower-cased command name from "/name" or
// "/name@bot". ok is false when text is not a command.
func parseCommand(text string) (name, target string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	token := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token, target = token[:at], token[at+1:]
	}
	if token == "" {
		return "", "", false
	}

	return strings.ToLower(token), target, true
}

// classify returns the handler class and, for commands, the command name.
func (h *Handler) classify(msg *models.Message) (messageKind, string) {
	if msg == nil {
		return kindIgnored, ""
	}

	if name, target, ok := parseCommand(msg.Text); ok {
		if target != "" && !strings.EqualFold(target, h.botName) {
			return kindIgnored, name
		}
		return kindCommand, name
	}

	switch {
	case len(msg.NewChatMembers) > 0:
		return kindNewMembers, ""
	case msg.LeftChatMember != nil:
		return kindLeftMember, ""
	case len(msg.Photo) > 0:
		return kindPhoto, ""
	case msg.Sticker != nil:
		return kindSticker, ""
	case msg.Video != nil:
		return kindVideo, ""
	case hasLinkOrHashtag(msg.Entities):
		return kindLinkOrHashtag, ""
	case msg.Document != nil:
		return kindDocument, ""
	case msg.Text == "":
		return kindIgnored, ""
	case msg.Chat.Type == models.ChatTypePrivate:
		return kindPrivateText, ""
	default:
		return kindGroupText, ""
	}
}

func hasLinkOrHashtag(entities []models.MessageEntity) bool {
	for _, e := range entities {
		if e.Type == models.MessageEntityTypeHashtag || e.Type == models.MessageEntityTypeURL {
			return true
		}
	}
	return false
}

func (h *Handler) route(ctx context.Context, kind messageKind, name string, msg *models.Message) error {
	switch kind {
	case kindCommand:
		return h.runCommand(ctx, name, msg)
	case kindNewMembers:
		return h.handleNewMembers(ctx, msg)
	case kindLeftMember:
		h.handleLeftMember(msg)
		return nil
	case kindPhoto:
		return h.handlePhoto(ctx, msg)
	case kindSticker:
		return h.handleSticker(ctx, msg)
	case kindVideo:
		h.handleVideo(msg)
		return nil
	case kindLinkOrHashtag:
		return h.handleLinksAndHashtags(ctx, msg)
	case kindDocument:
		return h.handleDocument(ctx, msg)
	case kindPrivateText:
		return h.handlePrivateText(ctx, msg)
	case kindGroupText:
		return h.handleGroupText(ctx, msg)
	default:
		return nil
	}
}

// runCommand looks up the command and, for restricted ones, consults the
// admin guard before anything else happens.
func (h *Handler) runCommand(ctx context.Context, name string, msg *models.Message) error {
	cmd, ok := h.commands[name]
	if !ok {
		return nil
	}

	if cmd.restricted && h.guard.Check(userID(msg.From), name) != admin.Authorized {
		return nil
	}

	return cmd.run(ctx, msg)
}

func (h *Handler) commandTable() map[string]command {
	public := func(run commandFunc) command { return command{run: run} }
	restricted := func(run commandFunc) command { return command{restricted: true, run: run} }

	return map[string]command{
		"id":              public(h.cmdID),
		"start":           public(h.info("start", h.replyStart)),
		"about":           public(h.info("about", h.replyTemplate("about"))),
		"rules":           public(h.info("rules", h.replyTemplate("rules"))),
		"admins":          public(h.info("admins", h.replyAdmins)),
		"teamspeak":       public(h.info("teamspeak", h.replyWithSticker("teamspeak", func() string { return h.media.TeamspeakSticker }))),
		"teamspeakbadges": public(h.info("teamspeakbadges", h.replyTemplate("teamspeakbadges"))),
		"telegram":        public(h.info("telegram", h.replyTemplate("telegram"))),
		"livestream":      public(h.info("livestream", h.replyWithSticker("livestream", func() string { return h.media.LivestreamSticker }))),
		"exchanges":       public(h.info("exchanges", h.replyTemplate("exchanges"))),
		"donation":        public(h.info("donation", h.replyDonation)),

		"topstickers":        restricted(h.cmdTopStickers),
		"topgif":             restricted(h.cmdTopGif),
		"topgifposters":      restricted(h.cmdTopGifPosters),
		"todayinwords":       restricted(h.cmdTodayInWords),
		"todaysusers":        restricted(h.cmdTodaysUsers),
		"promotets":          restricted(h.cmdPromoteTS),
		"shill":              restricted(h.cmdShill),
		"commandstats":       restricted(h.cmdCommandStats),
		"joinstats":          restricted(h.cmdJoinStats),
		"whalepooloverprice": restricted(h.cmdPriceOverlay),
		"special":            restricted(h.cmdSpecial),
	}
}
