package webos

import (
	"context"
	"encoding/json"
	"fmt"
)

// SSAP URIs used by Remote.
const (
	URIGetVolume      = "ssap://audio/getVolume"
	URISetVolume      = "ssap://audio/setVolume"
	URIGetAudioStatus = "ssap://audio/getStatus"
	URISetMute        = "ssap://audio/setMute"
	URICreateToast    = "ssap://system.notifications/createToast"
	URIGetChannelList = "ssap://tv/getChannelList"
	URIGetChannel     = "ssap://tv/getCurrentChannel"
	URIOpenChannel    = "ssap://tv/openChannel"
	URIGetInputList   = "ssap://tv/getExternalInputList"
	URISwitchInput    = "ssap://tv/switchInput"
	URITurnOff        = "ssap://system/turnOff"
	URIListApps       = "ssap://com.webos.applicationManager/listLaunchPoints"
	URILaunchApp      = "ssap://system.launcher/launch"
	URICloseApp       = "ssap://system.launcher/close"
	URISoftwareInfo   = "ssap://com.webos.service.update/getCurrentSWInformation"
)

const maxVolume = 100

// Volume is the audio level reported by the television.
type Volume struct {
	Level int  `json:"volume"`
	Muted bool `json:"muted"`
}

// Channel is one entry of the channel list.
type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Input is an external input such as an HDMI port.
type Input struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Icon      string `json:"icon,omitempty"`
	Connected bool   `json:"connected"`
	AppID     string `json:"app_id,omitempty"`
}

// App is a launch point on the home screen.
type App struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// SoftwareInfo describes the firmware of the television.
type SoftwareInfo struct {
	ProductName  string `json:"product_name"`
	ModelName    string `json:"model_name"`
	SoftwareType string `json:"sw_type"`
	MajorVersion string `json:"major_ver"`
	MinorVersion string `json:"minor_ver"`
	Country      string `json:"country"`
	DeviceID     string `json:"device_id"`
}

// Remote is the typed command catalog. Each method is a single request.
type Remote struct {
	r Requester
}

// NewRemote wraps r, normally a *Session.
func NewRemote(r Requester) *Remote {
	return &Remote{r: r}
}

// GetVolume returns the current volume and mute flag.
func (rm *Remote) GetVolume(ctx context.Context) (Volume, error) {
	var resp struct {
		Volume       *int `json:"volume"`
		Muted        bool `json:"muted"`
		VolumeStatus *struct {
			Volume     int  `json:"volume"`
			MuteStatus bool `json:"muteStatus"`
		} `json:"volumeStatus"`
	}
	if err := rm.call(ctx, URIGetVolume, nil, &resp); err != nil {
		return Volume{}, err
	}
	switch {
	case resp.Volume != nil:
		return Volume{Level: *resp.Volume, Muted: resp.Muted}, nil
	case resp.VolumeStatus != nil:
		// webOS 5 and later nest the level.
		return Volume{Level: resp.VolumeStatus.Volume, Muted: resp.VolumeStatus.MuteStatus}, nil
	default:
		return Volume{}, fmt.Errorf("%w: %s has no volume", ErrInvalidResponse, URIGetVolume)
	}
}

// SetVolume sets the absolute volume, 0 to 100.
func (rm *Remote) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > maxVolume {
		return fmt.Errorf("%w: volume %d out of range 0-%d", ErrInvalidCommand, level, maxVolume)
	}
	return rm.call(ctx, URISetVolume, map[string]any{"volume": level}, nil)
}

// GetMute reports whether audio is muted.
func (rm *Remote) GetMute(ctx context.Context) (bool, error) {
	var resp struct {
		Mute *bool `json:"mute"`
	}
	if err := rm.call(ctx, URIGetAudioStatus, nil, &resp); err != nil {
		return false, err
	}
	if resp.Mute == nil {
		return false, fmt.Errorf("%w: %s has no mute flag", ErrInvalidResponse, URIGetAudioStatus)
	}
	return *resp.Mute, nil
}

// SetMute mutes or unmutes audio.
func (rm *Remote) SetMute(ctx context.Context, mute bool) error {
	return rm.call(ctx, URISetMute, map[string]any{"mute": mute}, nil)
}

// CreateToast shows a notification bubble on screen and returns its ID.
func (rm *Remote) CreateToast(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("%w: toast message is empty", ErrInvalidCommand)
	}
	var resp struct {
		ToastID string `json:"toastId"`
	}
	if err := rm.call(ctx, URICreateToast, map[string]any{"message": message}, &resp); err != nil {
		return "", err
	}
	return resp.ToastID, nil
}

// GetChannels returns the tuner's channel list.
func (rm *Remote) GetChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		ChannelList json.RawMessage `json:"channelList"`
	}
	if err := rm.call(ctx, URIGetChannelList, nil, &resp); err != nil {
		return nil, err
	}

	var raw []rawChannel
	if len(resp.ChannelList) == 0 || resp.ChannelList[0] != '[' {
		return nil, fmt.Errorf("%w: channelList is not an array", ErrInvalidResponse)
	}
	if err := json.Unmarshal(resp.ChannelList, &raw); err != nil {
		return nil, fmt.Errorf("%w: channelList: %w", ErrInvalidResponse, err)
	}

	channels := make([]Channel, 0, len(raw))
	for _, c := range raw {
		channels = append(channels, c.channel())
	}
	return channels, nil
}

// GetCurrentChannel returns the channel being watched.
func (rm *Remote) GetCurrentChannel(ctx context.Context) (Channel, error) {
	var resp struct {
		rawChannel
		ErrorText string `json:"errorText"`
	}
	if err := rm.call(ctx, URIGetChannel, nil, &resp); err != nil {
		return Channel{}, err
	}
	// Outside live TV the service answers successfully with an errorText.
	if resp.ErrorText != "" {
		return Channel{}, &DeviceError{URI: URIGetChannel, Message: resp.ErrorText}
	}
	return resp.channel(), nil
}

// SetChannel tunes to channelID.
func (rm *Remote) SetChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("%w: channel id is empty", ErrInvalidCommand)
	}
	return rm.call(ctx, URIOpenChannel, map[string]any{"channelId": channelID}, nil)
}

// GetInputs returns the external inputs.
func (rm *Remote) GetInputs(ctx context.Context) ([]Input, error) {
	var resp struct {
		Devices []struct {
			ID        string `json:"id"`
			Label     string `json:"label"`
			Icon      string `json:"icon"`
			Connected bool   `json:"connected"`
			AppID     string `json:"appId"`
		} `json:"devices"`
	}
	if err := rm.call(ctx, URIGetInputList, nil, &resp); err != nil {
		return nil, err
	}
	inputs := make([]Input, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		inputs = append(inputs, Input{ID: d.ID, Label: d.Label, Icon: d.Icon, Connected: d.Connected, AppID: d.AppID})
	}
	return inputs, nil
}

// SetInput switches to inputID, e.g. "HDMI_1".
func (rm *Remote) SetInput(ctx context.Context, inputID string) error {
	if inputID == "" {
		return fmt.Errorf("%w: input id is empty", ErrInvalidCommand)
	}
	return rm.call(ctx, URISwitchInput, map[string]any{"inputId": inputID}, nil)
}

// TurnOff puts the television in standby. The socket usually drops shortly
// after the response.
func (rm *Remote) TurnOff(ctx context.Context) error {
	return rm.call(ctx, URITurnOff, nil, nil)
}

// ListApps returns the launch points shown on the home screen.
func (rm *Remote) ListApps(ctx context.Context) ([]App, error) {
	var resp struct {
		LaunchPoints []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Icon  string `json:"icon"`
		} `json:"launchPoints"`
	}
	if err := rm.call(ctx, URIListApps, nil, &resp); err != nil {
		return nil, err
	}
	apps := make([]App, 0, len(resp.LaunchPoints))
	for _, lp := range resp.LaunchPoints {
		apps = append(apps, App{ID: lp.ID, Title: lp.Title, Icon: lp.Icon})
	}
	return apps, nil
}

// LaunchApp starts appID with optional launch parameters and returns the
// television's answer (session ID and the like).
func (rm *Remote) LaunchApp(ctx context.Context, appID string, params map[string]any) (json.RawMessage, error) {
	if appID == "" {
		return nil, fmt.Errorf("%w: app id is empty", ErrInvalidCommand)
	}
	if params == nil {
		params = map[string]any{}
	}
	return rm.r.Request(ctx, URILaunchApp, map[string]any{"id": appID, "params": params})
}

// CloseApp closes a running app.
func (rm *Remote) CloseApp(ctx context.Context, appID string) error {
	if appID == "" {
		return fmt.Errorf("%w: app id is empty", ErrInvalidCommand)
	}
	return rm.call(ctx, URICloseApp, map[string]any{"id": appID}, nil)
}

// GetSoftwareInfo returns firmware details.
func (rm *Remote) GetSoftwareInfo(ctx context.Context) (SoftwareInfo, error) {
	var resp struct {
		ProductName  string `json:"product_name"`
		ModelName    string `json:"model_name"`
		SoftwareType string `json:"sw_type"`
		MajorVersion string `json:"major_ver"`
		MinorVersion string `json:"minor_ver"`
		Country      string `json:"country"`
		DeviceID     string `json:"device_id"`
	}
	if err := rm.call(ctx, URISoftwareInfo, nil, &resp); err != nil {
		return SoftwareInfo{}, err
	}
	return SoftwareInfo(resp), nil
}

// call issues one request and decodes the payload into out when non-nil.
func (rm *Remote) call(ctx context.Context, uri string, payload any, out any) error {
	raw, err := rm.r.Request(ctx, uri, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, uri, err)
	}
	return nil
}

// rawChannel is the wire form of a channel. Numbers arrive as strings
// ("7-1") on most firmware and as integers on some.
type rawChannel struct {
	ChannelID     string          `json:"channelId"`
	ChannelName   string          `json:"channelName"`
	ChannelNumber json.RawMessage `json:"channelNumber"`
}

func (c rawChannel) channel() Channel {
	number := string(c.ChannelNumber)
	var s string
	if err := json.Unmarshal(c.ChannelNumber, &s); err == nil {
		number = s
	}
	return Channel{ID: c.ChannelID, Name: c.ChannelName, Number: number}
}
