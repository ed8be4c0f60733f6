package http

import (
	"net/http"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/otp"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
)

// DevOTPHandler reads back the codes sent to a client. Only mounted
// outside production.
//
//	@Summary		Read dispatched one-time codes
//	@Description	Lists the contact and MFA codes sent to a client, oldest first. Development only.
//	@Tags			Dev
//	@Produce		json
//	@Param			clientId	path		string	true	"Client ID"
//	@Success		200			{object}	brokersdk.DevOTPResponse
//	@Router			/v1/dev/otp/{clientId} [get].
func DevOTPHandler(outbox *otp.Outbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.PathValue("clientId")
		sent := outbox.Messages(clientID)

		resp := brokersdk.DevOTPResponse{
			ClientID: clientID,
			Messages: make([]brokersdk.OTPMessage, 0, len(sent)),
		}
		for _, m := range sent {
			resp.Messages = append(resp.Messages, brokersdk.OTPMessage{
				CodeID:      m.CodeID,
				Channel:     string(m.Channel),
				Destination: m.Destination,
				Code:        m.Code,
				SentAt:      m.SentAt,
			})
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
