package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/trezcool/ptahub/apps/api/echo"
	"github.com/trezcool/ptahub/core/user"
	testutil "github.com/trezcool/ptahub/tests"
)

func Test_userApi_login(t *testing.T) {
	db.Reset()

	testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "LePassword", []string{user.RoleParent}, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "LePassword", []string{user.RoleParent}, false)

	tests := []httpTest{
		{
			name: "Fields required", body: marchallObj(t, echoapi.LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "who", Password: "LePassword"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "jparent", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LePassword"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Login by username", body: marchallObj(t, echoapi.LoginRequest{Username: "jparent", Password: "LePassword"}), wantCode: http.StatusOK},
		{name: "Login by email", body: marchallObj(t, echoapi.LoginRequest{Username: "jparent@test.cd", Password: "LePassword"}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decodeBody(t, rec, &resp)
				if resp.Token == "" {
					t.Errorf("expected a token; body: %s", rec.Body.String())
				}
			}
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)
	testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", token: getToken(t, parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{name: "Get all", token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "Filter by role", path: "/v1/users?role=" + user.RoleParent, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, parent)},
	}
	for _, tt := range tests {
		if tt.path == "" {
			tt.path = "/v1/users"
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.name == "Get all" {
				var users []user.User
				decodeBody(t, rec, &users)
				if len(users) != 3 {
					t.Errorf("expected 3 users; got %d", len(users))
				}
			}
		})
	}
}

func Test_userApi_userRetrieve(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)
	other := testutil.CreateUser(t, usrRepo, "Other Parent", "oparent", "oparent@test.cd", "", []string{user.RoleParent}, true)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + parent.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Own profile", path: "/v1/users/" + parent.ID, token: getToken(t, parent), wantCode: http.StatusOK, wantData: marchallObj(t, parent)},
		{name: "Someone else's profile hidden", path: "/v1/users/" + other.ID, token: getToken(t, parent), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "Admin sees all", path: "/v1/users/" + other.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, other)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userCreate(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)

	newParent := user.NewUser{
		Name:            "New Parent",
		Username:        "nparent",
		Email:           "nparent@test.cd",
		Password:        "v3ry-s3cret",
		PasswordConfirm: "v3ry-s3cret",
		Roles:           []string{user.RoleParent},
	}
	wannabeOwner := newParent
	wannabeOwner.Roles = []string{user.RoleAdminOwner}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", token: getToken(t, parent), body: marchallObj(t, newParent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{
			name: "Fields required", token: getToken(t, admin), body: marchallObj(t, user.NewUser{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
			}),
		},
		{
			name: "Cannot grant roles beyond own rank", token: getToken(t, admin), body: marchallObj(t, wannabeOwner),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{name: "Created", token: getToken(t, admin), body: marchallObj(t, newParent), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusCreated {
				var usr user.User
				decodeBody(t, rec, &usr)
				if !usr.IsActive {
					t.Error("expected new user to be active")
				}
				saved, err := usrRepo.GetUserByUsername(newParent.Username)
				if err != nil {
					t.Fatalf("GetUserByUsername(): %v", err)
				}
				if err = saved.CheckPassword(newParent.Password); err != nil {
					t.Error("password not set on new user")
				}
			}
		})
	}
}

func Test_userApi_userUpdate(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)
	other := testutil.CreateUser(t, usrRepo, "Other Parent", "oparent", "oparent@test.cd", "", []string{user.RoleParent}, true)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + parent.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Own name change", path: "/v1/users/" + parent.ID, token: getToken(t, parent),
			body: marchallObj(t, user.UpdateUser{Name: "Janet Parent"}), wantCode: http.StatusOK,
		},
		{
			name: "Roles are admin-only", path: "/v1/users/" + parent.ID, token: getToken(t, parent),
			body:     marchallObj(t, user.UpdateUser{Roles: []string{user.RoleHR}}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "Someone else's profile hidden", path: "/v1/users/" + other.ID, token: getToken(t, parent),
			body:     marchallObj(t, user.UpdateUser{Name: "Gotcha"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Cannot grant roles beyond own rank", path: "/v1/users/" + other.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdminOwner}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "Admin grants a role", path: "/v1/users/" + other.ID, token: getToken(t, admin),
			body: marchallObj(t, user.UpdateUser{Roles: []string{user.RoleHR}}), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}
			var usr user.User
			decodeBody(t, rec, &usr)
			switch tt.name {
			case "Own name change":
				if usr.Name != "Janet Parent" {
					t.Errorf("name = %s; want Janet Parent", usr.Name)
				}
			case "Admin grants a role":
				if len(usr.Roles) != 1 || usr.Roles[0] != user.RoleHR {
					t.Errorf("roles = %v; want [%s]", usr.Roles, user.RoleHR)
				}
			}
		})
	}
}

func Test_userApi_userDestroy(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)
	victim := testutil.CreateUser(t, usrRepo, "Bye Bye", "byebye", "byebye@test.cd", "", []string{user.RoleParent}, true)
	victim2 := testutil.CreateUser(t, usrRepo, "Bye Again", "byeagain", "byeagain@test.cd", "", []string{user.RoleParent}, true)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + victim.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", path: "/v1/users/" + parent.ID, token: getToken(t, parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{name: "Someone else's profile hidden", path: "/v1/users/" + victim.ID, token: getToken(t, parent), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "No self-delete", path: "/v1/users/" + admin.ID, token: getToken(t, admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{name: "Deleted", path: "/v1/users/" + victim.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
		{name: "No self-delete in batch", path: "/v1/users?id=" + admin.ID + "&id=" + victim2.ID, token: getToken(t, admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{name: "Batch deleted", path: "/v1/users?id=" + victim2.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, id := range []string{victim.ID, victim2.ID} {
		if _, err := usrRepo.GetUserByID(id); err != user.ErrNotFound {
			t.Errorf("GetUserByID(%s) error = %v; want ErrNotFound", id, err)
		}
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	db.Reset()

	parent := testutil.CreateUser(t, usrRepo, "Jane Parent", "jparent", "jparent@test.cd", "", []string{user.RoleParent}, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleParent}, false)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   parent.ID,
			Audience:  "PTA",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsParent:     true,
		Roles:        parent.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, parent), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decodeBody(t, rec, &resp)
				if resp.Token == "" {
					t.Errorf("expected a token; body: %s", rec.Body.String())
				}
			}
		})
	}
}
