/*
Package brokersdk provides a client SDK for the brokerx onboarding and funding
service.

# SDKClient vs Session

  - SDKClient: public operations (signup, contact verification, login, health)
  - Session: operations that need a bearer token (profile, MFA policy,
    deposits, ledger, renew, logout)

Onboarding a client:

	client := brokersdk.NewSDKClient("http://localhost:8080")

	signup, err := client.Signup(ctx, brokersdk.SignupRequest{
		Email:    "jane@example.com",
		FullName: "Jane Doe",
		Password: "correct horse",
	})

	// The code arrives out of band; in dev it can be read back.
	otp, err := client.DevOTP(ctx, signup.ClientID)
	_, err = client.VerifyContactOTP(ctx, signup.ClientID, otp.Latest().Code)

Logging in, answering MFA when the policy asks for it:

	login, err := client.Login(ctx, "jane@example.com", "correct horse")
	if login.MFARequired {
		login, err = client.VerifyMFA(ctx, login.ClientID, login.ChallengeID, code)
	}
	session := client.NewSession(login.Token)

Depositing funds. The idempotency key makes retries safe:

	dep, err := session.Deposit(ctx, accountID, brokersdk.DepositRequest{
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "USD",
		IdempotencyKey: "k1",
	})

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status,
the machine code and a description:

	var apiErr *brokersdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == brokersdk.ErrorCodeCodeExpired {
		// ask for a new code
	}
*/
package brokersdk
