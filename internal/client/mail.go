package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

var ErrMailNotConfigured = errors.New("mail delivery API is not configured")

type MailSendRequest struct {
	RecipientID string `json:"recipient_id"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
}

type MailSendResponse struct {
	Accepted bool    `json:"accepted"`
	Error    *string `json:"error"`
}

// MailSend posts one email request to the delivery API. The recipient is
// addressed by account ID; the delivery side resolves it to an address.
func (c Client) MailSend(ctx context.Context, mailReq MailSendRequest) (MailSendResponse, error) {
	if c.MailAPIURL == "" {
		return MailSendResponse{}, ErrMailNotConfigured
	}
	reqBody, err := json.Marshal(mailReq)
	if err != nil {
		return MailSendResponse{}, errors.Wrapf(err, "MailSend: MailSendRequest JSON marshalling error, req: %+v", mailReq)
	}

	req, err := newRequest(ctx, http.MethodPost, c.MailAPIURL, bytes.NewReader(reqBody))
	if err != nil {
		return MailSendResponse{}, errors.Wrapf(err, "MailSend: error creating HTTP request from body: %s", reqBody)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.MailAPIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return MailSendResponse{}, errors.Wrapf(err, "MailSend: error doing request: %+v", req)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("MailSend: error closing response body, req: %+v, err: %v", req, err)
		}
	}()

	mailResp := MailSendResponse{}
	respBody, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300000))
	if err != nil {
		return mailResp, errors.Wrapf(err,
			"MailSend: error reading mail API response body, req: %+v, response body: %s", req, respBody)
	}
	if resp.StatusCode != http.StatusOK {
		return mailResp, errors.Errorf("MailSend: mail API returned status: %s, response body: %s", resp.Status, respBody)
	}
	if err = json.Unmarshal(respBody, &mailResp); err != nil {
		return mailResp, errors.Wrapf(err,
			"MailSend: error unmarshalling mail API response body, req: %+v, response body: %s", req, respBody)
	}
	if !mailResp.Accepted {
		reason := "unknown"
		if mailResp.Error != nil {
			reason = *mailResp.Error
		}
		return mailResp, errors.Errorf("MailSend: mail API rejected request, reason: %s", reason)
	}
	return mailResp, nil
}
