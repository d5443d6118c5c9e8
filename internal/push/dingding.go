package push

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"school-inbox/internal/config"
	"school-inbox/internal/model"
)

const defaultTemplate = "#### ${subject}\n\n**${sender}** (${channel}) ${date}\n\n${text}\n\n[open](${link})"

type DingTalk struct {
	Webhook  string
	Secret   string
	MsgType  string
	Title    string
	Template string
	client   *http.Client
}

type Response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalk(cfg config.DingdingConfig) *DingTalk {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	tpl := cfg.Template
	if tpl == "" {
		tpl = defaultTemplate
	}
	return &DingTalk{
		Webhook:  cfg.Webhook,
		Secret:   cfg.Secret,
		MsgType:  cfg.MsgType,
		Title:    cfg.Title,
		Template: tpl,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *DingTalk) Name() string { return "dingding" }

func (d *DingTalk) Deliver(ctx context.Context, msg model.Message) error {
	content := RenderTemplate(d.Template, msg.Values())
	if strings.ToLower(d.MsgType) == "text" {
		return d.send(ctx, map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": content},
		})
	}
	title := d.Title
	if title == "" {
		title = msg.Subject
	}
	return d.send(ctx, map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  content,
		},
	})
}

func (d *DingTalk) send(ctx context.Context, payload map[string]any) error {
	endpoint := d.Webhook
	if d.Secret != "" {
		ts := fmt.Sprintf("%d", time.Now().UnixMilli())
		endpoint = fmt.Sprintf("%s&timestamp=%s&sign=%s", d.Webhook, ts, sign(ts, d.Secret))
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dingding: %s", resp.Status)
	}
	var r Response
	_ = json.NewDecoder(resp.Body).Decode(&r)
	if r.ErrCode != 0 {
		return fmt.Errorf("dingding error %d: %s", r.ErrCode, r.ErrMsg)
	}
	return nil
}

func sign(timestamp, secret string) string {
	stringToSign := fmt.Sprintf("%s\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(stringToSign))
	encoded := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return url.QueryEscape(encoded)
}

// RenderTemplate substitutes ${key} placeholders in a single pass, so
// placeholders inside substituted values are left as they are.
func RenderTemplate(tpl string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "${"+k+"}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
