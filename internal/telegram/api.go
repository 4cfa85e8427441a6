package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// API is the subset of Bot API methods the handlers call. *bot.Bot
// satisfies it.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendAnimation(ctx context.Context, params *bot.SendAnimationParams) (*models.Message, error)
	ForwardMessage(ctx context.Context, params *bot.ForwardMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error)
	BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error)
	PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error)
	GetUserProfilePhotos(ctx context.Context, params *bot.GetUserProfilePhotosParams) (*models.UserProfilePhotos, error)
}

var _ API = (*bot.Bot)(nil)

// throttledAPI spaces outbound calls with a token bucket so bursts of
// broadcasts stay under the platform's flood limits.
type throttledAPI struct {
	next    API
	limiter *rate.Limiter
}

func newThrottledAPI(next API, perSecond float64) (*throttledAPI, error) {
	if next == nil {
		return nil, errors.New("telegram api is required")
	}
	if perSecond <= 0 {
		return nil, fmt.Errorf("telegram rate must be positive, got %v", perSecond)
	}

	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &throttledAPI{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

func (t *throttledAPI) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for telegram rate limit: %w", err)
	}
	return nil
}

func (t *throttledAPI) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SendMessage(ctx, params)
}

func (t *throttledAPI) SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SendSticker(ctx, params)
}

func (t *throttledAPI) SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SendPhoto(ctx, params)
}

func (t *throttledAPI) SendAnimation(ctx context.Context, params *bot.SendAnimationParams) (*models.Message, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SendAnimation(ctx, params)
}

func (t *throttledAPI) ForwardMessage(ctx context.Context, params *bot.ForwardMessageParams) (*models.Message, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ForwardMessage(ctx, params)
}

func (t *throttledAPI) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.next.DeleteMessage(ctx, params)
}

func (t *throttledAPI) RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.next.RestrictChatMember(ctx, params)
}

func (t *throttledAPI) BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.next.BanChatMember(ctx, params)
}

func (t *throttledAPI) PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.next.PinChatMessage(ctx, params)
}

func (t *throttledAPI) GetUserProfilePhotos(ctx context.Context, params *bot.GetUserProfilePhotosParams) (*models.UserProfilePhotos, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.GetUserProfilePhotos(ctx, params)
}
