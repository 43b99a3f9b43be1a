package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/config"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/events"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/service"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupPartAPI(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	cfg := &config.Config{}
	cfg.JWT.Secret = testutil.JWTSecret
	cfg.JWT.Issuer = "parts-factory"
	cfg.JWT.AccessTokenExpire = 24 * time.Hour

	svcs := service.NewServices(db, events.NewMemoryPublisher(), zap.NewNop())
	handlers := NewHandlers(svcs, cfg)

	api := testutil.AuthGroup(router, "/api/v1")
	parts := api.Group("/parts")
	parts.GET("", handlers.Part.List)
	parts.POST("", handlers.Part.Mint)
	parts.POST("/assemble", handlers.Part.Assemble)
	parts.GET("/:id", handlers.Part.Get)
	parts.GET("/:id/relations", handlers.Part.GetRelations)
	parts.POST("/:id/disassemble", handlers.Part.Disassemble)
	parts.POST("/:id/attach", handlers.Part.Attach)
	parts.POST("/:id/detach", handlers.Part.Detach)
	parts.GET("/:id/owner", handlers.Registry.GetOwner)
	parts.POST("/:id/transfer", handlers.Registry.Transfer)

	return router
}

func mintViaAPI(t *testing.T, router *gin.Engine, token string, partNumber int64, name string) uint64 {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"part_number":  partNumber,
		"name":         name,
		"manufacturer": "Acme Robotics",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	return uint64(data["id"].(float64))
}

func TestMintAndQueryPart(t *testing.T) {
	router := setupPartAPI(t)
	token := testutil.AccountToken("alice")

	id := mintViaAPI(t, router, token, 100, "wheel")

	w := testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/parts/%d", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["lock_status"] != "free" {
		t.Errorf("Expected free part, got %v", data["lock_status"])
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/parts/%d/owner", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["owner"] != "alice" {
		t.Errorf("Expected owner alice, got %v", data["owner"])
	}
}

func TestMintRequiresAuth(t *testing.T) {
	router := setupPartAPI(t)

	w := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"part_number":  100,
		"name":         "wheel",
		"manufacturer": "Acme Robotics",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestMintValidationMapsToBadRequest(t *testing.T) {
	router := setupPartAPI(t)
	token := testutil.AccountToken("alice")

	w := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"part_number":  0,
		"name":         "wheel",
		"manufacturer": "Acme Robotics",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssembleAndDetachFlow(t *testing.T) {
	router := setupPartAPI(t)
	token := testutil.AccountToken("alice")

	a := mintViaAPI(t, router, token, 1, "motor")
	b := mintViaAPI(t, router, token, 2, "gearbox")

	w := testutil.DoRequest(router, "POST", "/api/v1/parts/assemble", map[string]interface{}{
		"part_number":  3,
		"name":         "drivetrain",
		"manufacturer": "Acme Robotics",
		"part_ids":     []uint64{a, b},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	composite := uint64(testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(float64))

	// 子件锁定后直接转移被拒（409）
	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/parts/%d/transfer", a),
		map[string]interface{}{"to": "bob"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for locked transfer, got %d: %s", w.Code, w.Body.String())
	}

	// 分离不存在的子件（404）
	stranger := mintViaAPI(t, router, token, 9, "bracket")
	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/parts/%d/detach", composite),
		map[string]interface{}{"part_id": stranger}, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign detach, got %d: %s", w.Code, w.Body.String())
	}

	// 两个子件时分离触发整体拆解
	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/parts/%d/detach", composite),
		map[string]interface{}{"part_id": a}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/parts/%d", composite), nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected composite destroyed (404), got %d", w.Code)
	}
}

func TestTransferMovesWholeTreeViaAPI(t *testing.T) {
	router := setupPartAPI(t)
	alice := testutil.AccountToken("alice")
	bob := testutil.AccountToken("bob")

	a := mintViaAPI(t, router, alice, 1, "motor")
	b := mintViaAPI(t, router, alice, 2, "gearbox")

	w := testutil.DoRequest(router, "POST", "/api/v1/parts/assemble", map[string]interface{}{
		"part_number":  3,
		"name":         "drivetrain",
		"manufacturer": "Acme Robotics",
		"part_ids":     []uint64{a, b},
	}, alice)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	composite := uint64(testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(float64))

	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/parts/%d/transfer", composite),
		map[string]interface{}{"to": "bob"}, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	for _, id := range []uint64{composite, a, b} {
		w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/parts/%d/owner", id), nil, bob)
		data := testutil.ParseResponse(w)["data"].(map[string]interface{})
		if data["owner"] != "bob" {
			t.Errorf("Part %d: expected owner bob, got %v", id, data["owner"])
		}
	}

	// 原持有者失去处置权（403）
	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/v1/parts/%d/disassemble", composite), nil, alice)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for former owner, got %d: %s", w.Code, w.Body.String())
	}
}
