// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package accounts_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/store"
)

type reply struct {
	status int
	body   map[string]any
}

func call(method, path, body string, header ...string) reply {
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out := reply{status: resp.StatusCode}
	Expect(json.NewDecoder(resp.Body).Decode(&out.body)).To(Succeed())
	return out
}

func registerBody(username, email, password string) string {
	return fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, email, password)
}

func loginBody(username, password string) string {
	return fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
}

var _ = Describe("Account lifecycle over HTTP", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	It("runs the bob scenario", func() {
		r := call(http.MethodPost, "/api/v1/accounts", registerBody("bob", "bob@x.com", "pw1"))
		Expect(r.status).To(Equal(http.StatusCreated))
		Expect(r.body["username"]).To(Equal("bob"))

		r = call(http.MethodPost, "/api/v1/accounts", registerBody("bob", "bob2@x.com", "pw1"))
		Expect(r.status).To(Equal(http.StatusConflict))

		r = call(http.MethodPost, "/api/v1/sessions", loginBody("bob", "pw1"))
		Expect(r.status).To(Equal(http.StatusOK))
		tok, _ := r.body["token"].(string)
		Expect(tok).NotTo(BeEmpty())

		r = call(http.MethodGet, "/api/v1/sessions/current", "", "Authorization", "Bearer "+tok)
		Expect(r.status).To(Equal(http.StatusOK))
		Expect(r.body["username"]).To(Equal("bob"))

		wrong := call(http.MethodPost, "/api/v1/sessions", loginBody("bob", "wrong"))
		Expect(wrong.status).To(Equal(http.StatusUnauthorized))

		unknown := call(http.MethodPost, "/api/v1/sessions", loginBody("nobody", "pw1"))
		Expect(unknown.body).To(Equal(wrong.body))

		r = call(http.MethodDelete, "/api/v1/accounts/bob", "")
		Expect(r.status).To(Equal(http.StatusOK))

		r = call(http.MethodPost, "/api/v1/sessions", loginBody("bob", "pw1"))
		Expect(r.status).To(Equal(http.StatusUnauthorized))
	})

	It("treats email addresses case-insensitively", func() {
		Expect(call(http.MethodPost, "/api/v1/accounts", registerBody("carol", "Carol@X.com", "pw")).status).
			To(Equal(http.StatusCreated))

		r := call(http.MethodPost, "/api/v1/accounts", registerBody("carla", "carol@x.COM", "pw"))
		Expect(r.status).To(Equal(http.StatusConflict))
		Expect(r.body["error"]).To(Equal("email already exists"))
	})

	It("deletes unknown accounts successfully", func() {
		Expect(call(http.MethodDelete, "/api/v1/accounts/ghost", "").status).To(Equal(http.StatusOK))
	})

	It("lets exactly one of many concurrent registrations win", func() {
		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := env.service.Register(env.ctx, "racer", fmt.Sprintf("racer%d@x.com", i), "pw")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, auth.ErrAccountExists):
					conflicts++
				default:
					Fail("unexpected error: " + err.Error())
				}
			}(i)
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(conflicts).To(Equal(workers - 1))
	})

	It("counts outcomes", func() {
		before := testutil.ToFloat64(env.metrics.AuthOperations.WithLabelValues(auth.OpLogin, auth.OutcomeAuthFailed))
		call(http.MethodPost, "/api/v1/sessions", loginBody("nobody", "pw"))
		after := testutil.ToFloat64(env.metrics.AuthOperations.WithLabelValues(auth.OpLogin, auth.OutcomeAuthFailed))
		Expect(after - before).To(BeNumerically("==", 1))
	})
})

var _ = Describe("Schema migrations", func() {
	It("reports every embedded migration as applied", func() {
		migrator, err := store.NewMigrator(env.connStr, nil)
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(migrator.Close()).To(Succeed()) }()

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(BeEmpty())

		all, err := store.Migrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(Equal(all[len(all)-1].Version))
	})
})
