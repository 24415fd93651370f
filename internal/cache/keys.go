package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix  = "profile:%d"
	UsernameKeyPrefix = "profile:username:%s"
	SettingKeyPrefix  = "setting:%s"
	SettingsAllKey    = "settings:all"
	MenuKeyPrefix     = "menu:%s"
	WSTicketPrefix    = "ws_ticket:%s"
	RevokedJTIPrefix  = "revoked_jti:%s"
)

const (
	ProfileTTL  = 5 * time.Minute
	SettingTTL  = 10 * time.Minute
	MenuTTL     = 15 * time.Minute
	WSTicketTTL = 60 * time.Second
)

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func UsernameKey(username string) string {
	return fmt.Sprintf(UsernameKeyPrefix, username)
}

func SettingKey(key string) string {
	return fmt.Sprintf(SettingKeyPrefix, key)
}

// MenuKey is keyed by date in YYYY-MM-DD form.
func MenuKey(date string) string {
	return fmt.Sprintf(MenuKeyPrefix, date)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketPrefix, ticket)
}

func RevokedJTIKey(jti string) string {
	return fmt.Sprintf(RevokedJTIPrefix, jti)
}

// Invalidate deletes keys, ignoring errors. No-op without a client.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// InvalidateProfile drops the cached profile and, when known, its username lookup.
func InvalidateProfile(ctx context.Context, userID uint, username string) {
	keys := []string{ProfileKey(userID)}
	if username != "" {
		keys = append(keys, UsernameKey(username))
	}
	Invalidate(ctx, keys...)
}

// InvalidateSetting drops one setting and the all-settings snapshot.
func InvalidateSetting(ctx context.Context, key string) {
	Invalidate(ctx, SettingKey(key), SettingsAllKey)
}
