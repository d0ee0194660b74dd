/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// discordAPI is the subset of *discordgo.Session used by Discord.
type discordAPI interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord sends announcements to text channels of one guild.
type Discord struct {
	session *discordgo.Session
	api     discordAPI
	guildID string
	logger  zerolog.Logger

	mu       sync.Mutex
	channels map[string]string // channel name -> id
}

// NewDiscord creates a bot session for token. Call Open before sending.
func NewDiscord(token, guildID string, logger zerolog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	d := newDiscord(session, guildID, logger)
	d.session = session
	return d, nil
}

func newDiscord(api discordAPI, guildID string, logger zerolog.Logger) *Discord {
	return &Discord{
		api:      api,
		guildID:  guildID,
		logger:   logger.With().Str("component", "discord").Logger(),
		channels: make(map[string]string),
	}
}

// Open connects the gateway.
func (d *Discord) Open() error {
	if d.session == nil {
		return nil
	}
	d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot ready")
	})
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects the gateway.
func (d *Discord) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}

// Send posts text to the channel with the given id.
func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	if channelID == "" {
		return fmt.Errorf("%w: empty channel id", ErrDestinationNotFound)
	}
	d.logger.Debug().Str("channel_id", channelID).Msg("sending message")

	if _, err := d.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: channel id %s", ErrDestinationNotFound, channelID)
		}
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

// SendByName posts text to the guild text channel called name.
func (d *Discord) SendByName(ctx context.Context, name, text string) error {
	channelID, err := d.lookup(ctx, name)
	if err != nil {
		return err
	}
	d.logger.Debug().Str("channel", name).Str("channel_id", channelID).Msg("sending message by name")

	if _, err := d.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		if isNotFound(err) {
			d.forget(name)
			return fmt.Errorf("%w: channel %s", ErrDestinationNotFound, name)
		}
		return fmt.Errorf("send to channel %s: %w", name, err)
	}
	return nil
}

// lookup resolves a channel name, refreshing the guild channel list on a miss.
func (d *Discord) lookup(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	id, ok := d.channels[name]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	channels, err := d.api.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list guild channels: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			d.channels[ch.Name] = ch.ID
		}
	}
	id, ok = d.channels[name]
	if !ok {
		return "", fmt.Errorf("%w: channel %s", ErrDestinationNotFound, name)
	}
	return id, nil
}

func (d *Discord) forget(name string) {
	d.mu.Lock()
	delete(d.channels, name)
	d.mu.Unlock()
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
