package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dairy-collection-backend/config"
	"dairy-collection-backend/internal/api"
	"dairy-collection-backend/internal/db"
	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/store"
	"dairy-collection-backend/internal/tenant"
)

// testResolver maps the "T1" key to a context with an empty schema, so
// every tenant-scoped query runs unqualified against the single sqlite
// database.
type testResolver struct{}

func (testResolver) Resolve(ctx context.Context, key string) (tenant.Context, error) {
	if strings.EqualFold(strings.TrimSpace(key), "T1") {
		return tenant.Context{ID: 1, Name: "Test Dairy"}, nil
	}
	return tenant.Context{}, tenant.ErrNotFound
}

func setupTestServer(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()

	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(db.TenantModels()...))
	require.NoError(t, testDB.AutoMigrate(&model.Tenant{}, &model.PushSubscription{}, &model.SubscriptionTarget{}))

	cfg := &config.ServerConfig{
		Port:            0,
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	}
	router := api.NewRouter(cfg, store.NewGormStore(testDB), testResolver{}, nil, nil)
	return testDB, router
}

func seedTenantData(t *testing.T, testDB *gorm.DB) {
	t.Helper()

	require.NoError(t, testDB.Create(&model.Society{ID: 1, Code: "101", Name: "Village 101", Active: true}).Error)
	require.NoError(t, testDB.Create(&model.Machine{
		ID: 1, SocietyID: 1, Code: "1", MachineType: "ECOD", Active: true,
		UserPassword: "1234", StatusU: true,
		SupervisorPassword: "admin99", StatusS: false,
	}).Error)
	require.NoError(t, testDB.Create(&model.Farmer{
		SocietyID: 1, Code: "F001", RFID: "AB12", Name: "RAMESH", Phone: "9876500001", SMS: 1, Bonus: 1.5, Active: true,
	}).Error)
	require.NoError(t, testDB.Create(&model.Farmer{
		SocietyID: 1, Code: "F002", RFID: "CD34", Name: "SURESH", Phone: "9876500002", Active: true,
	}).Error)

	chart := model.RateChart{ID: 1, SocietyID: 1, Channel: 1, Name: "Feb COW", Status: 1, UploadedAt: time.Now()}
	require.NoError(t, testDB.Create(&chart).Error)
	require.NoError(t, testDB.Create(&model.RateChartPrice{ChartID: 1, Fat: 3, Snf: 8, Clr: 27, Rate: 30.5}).Error)
	require.NoError(t, testDB.Create(&model.RateChartPrice{ChartID: 1, Fat: 3.1, Snf: 8, Clr: 27.5, Rate: 31}).Error)
}

func deviceGet(router http.Handler, path, orgKey, command string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path+"?OrgId="+orgKey+"&Data="+url.QueryEscape(command), nil)
	router.ServeHTTP(w, req)
	return w
}

func devicePost(router http.Handler, path, orgKey, command string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	form := url.Values{"OrgId": {orgKey}, "Data": {command}}
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

// TestDeviceProtocolLifecycle drives the full device protocol against an
// in-memory database: roster, correction round-trip, credential delivery,
// chart download, and the firmware handshake.
func TestDeviceProtocolLifecycle(t *testing.T) {
	testDB, router := setupTestServer(t)
	seedTenantData(t, testDB)

	t.Run("roster export and pagination", func(t *testing.T) {
		w := deviceGet(router, "/device/farmers", "T1", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "RF-ID,ID,NAME,MOBILE,SMS,BONUS\n"))
		assert.Contains(t, w.Body.String(), "AB12,F001,RAMESH,9876500001,1,2")
		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

		w = deviceGet(router, "/device/farmers", "T1", "101|ECOD|LE2.00|M00000001|C00001")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `"F001|AB12|RAMESH|9876500001|1|1.50||F002|CD34|SURESH|9876500002|0|0.00"`, w.Body.String())

		// Past the end of the roster: an empty quoted record, not an error.
		w = deviceGet(router, "/device/farmers", "T1", "101|ECOD|LE2.00|M1|C00002")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `""`, w.Body.String())
	})

	t.Run("correction round trip", func(t *testing.T) {
		// Nothing uploaded yet.
		w := deviceGet(router, "/device/correction", "T1", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Machine correction not found.", w.Body.String())

		// Device uploads channel 1 offsets.
		w = devicePost(router, "/device/correction/save", "T1", "101|ECOD|LE2.00|M1||1|F+0.16|S-1.00|C|T|W|P|D01022026")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Success", w.Body.String())

		w = deviceGet(router, "/device/correction", "T1", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "||1|0.16|-1.00|")

		// A same-day write for channel 2 lands in the same row.
		w = devicePost(router, "/device/correction/save", "T1", "101|ECOD|LE2.00|M1||2|F+0.30|S|C|T|W|P|D01022026")
		assert.Equal(t, http.StatusOK, w.Code)

		var activeCount int64
		testDB.Table("machine_corrections").Where("machine_id = ? AND status = ?", 1, 1).Count(&activeCount)
		assert.Equal(t, int64(1), activeCount, "same-day writes must share one active row")

		w = deviceGet(router, "/device/correction", "T1", "101|ECOD|LE2.00|M1")
		assert.Contains(t, w.Body.String(), "||1|0.16|-1.00|")
		assert.Contains(t, w.Body.String(), "||2|0.30|0.00|")

		// The device acknowledges; the row goes inactive but is kept.
		w = devicePost(router, "/device/correction/reset", "T1", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Success", w.Body.String())

		w = deviceGet(router, "/device/correction", "T1", "101|ECOD|LE2.00|M1")
		assert.Equal(t, "Machine correction not found.", w.Body.String())

		var totalCount int64
		testDB.Table("machine_corrections").Where("machine_id = ?", 1).Count(&totalCount)
		assert.Equal(t, int64(1), totalCount, "invalidated rows stay in history")
	})

	t.Run("credential delivery and acknowledge", func(t *testing.T) {
		w := deviceGet(router, "/device/password", "T1", "101|ECOD|LE2.00|M1|U")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `"PU|1234"`, w.Body.String())

		// The supervisor flag is unset, so the stored value stays hidden.
		w = deviceGet(router, "/device/password", "T1", "101|ECOD|LE2.00|M1|S")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Machine password not found.", w.Body.String())

		w = devicePost(router, "/device/password/clear", "T1", "101|ECOD|LE2.00|M1|U")
		assert.Equal(t, "Success", w.Body.String())

		var mach model.Machine
		require.NoError(t, testDB.First(&mach, 1).Error)
		assert.False(t, mach.StatusU)
		assert.Equal(t, "1234", mach.UserPassword, "clearing the flag keeps the stored value")

		w = deviceGet(router, "/device/password", "T1", "101|ECOD|LE2.00|M1|U")
		assert.Equal(t, "Machine password not found.", w.Body.String())
	})

	t.Run("rate chart download is idempotent", func(t *testing.T) {
		w := deviceGet(router, "/device/ratechart", "T1", "S-101|LSE-X|LE3.36|M00001|COW")
		assert.Equal(t, http.StatusOK, w.Code)
		lines := strings.Split(w.Body.String(), "\n")
		assert.Equal(t, "Clr,Fat,Snf,Rate", lines[0])
		assert.Equal(t, "27.00,3.00,8.00,30.50", lines[1])
		assert.Equal(t, "Price chart not found.", lines[len(lines)-1])

		// A retrying device leaves exactly one history row behind.
		deviceGet(router, "/device/ratechart", "T1", "S-101|LSE-X|LE3.36|M00001|COW")
		var downloads int64
		testDB.Table("rate_chart_downloads").Where("chart_id = ? AND machine_id = ?", 1, 1).Count(&downloads)
		assert.Equal(t, int64(1), downloads)

		// No chart is assigned for BUF.
		w = deviceGet(router, "/device/ratechart", "T1", "S-101|LSE-X|LE3.36|M00001|BUF")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Price chart not found.", w.Body.String())
	})

	t.Run("firmware handshake never fails over HTTP", func(t *testing.T) {
		w := deviceGet(router, "/device/firmware", "T1", "101|LSE-X|LE3.36|M00001|D01022026")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasSuffix(w.Body.String(), "|No update"))

		w = deviceGet(router, "/device/firmware", "T1", "101|LSE-X|LE3.36|Mm999|D01022026")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasSuffix(w.Body.String(), "|Error"))

		w = deviceGet(router, "/device/firmware", "BAD", "101|LSE-X|LE3.36|M00001|D01022026")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasSuffix(w.Body.String(), "|Error"))
	})

	t.Run("unknown organization follows each endpoint's policy", func(t *testing.T) {
		w := deviceGet(router, "/device/farmers", "BAD", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Organization not found.", w.Body.String())

		w = deviceGet(router, "/device/correction", "BAD", "101|ECOD|LE2.00|M1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Machine correction not found.", w.Body.String())
	})
}

// TestCorrectionHistoryWindow verifies the five-row retention window on
// the store directly: writes across distinct days never accumulate more
// than five rows per machine.
func TestCorrectionHistoryWindow(t *testing.T) {
	testDB, _ := setupTestServer(t)
	s := store.NewGormStore(testDB)
	tc := tenant.Context{ID: 1}

	base := time.Now().AddDate(0, 0, -10)
	for i := 0; i < 7; i++ {
		err := s.SaveCorrection(context.Background(), tc, 99, parse.ChannelCow,
			parse.CorrectionValues{Fat: float64(i)}, base.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	var count int64
	testDB.Table("machine_corrections").Where("machine_id = ?", 99).Count(&count)
	assert.Equal(t, int64(5), count)

	// The survivors are the five most recent.
	var oldest float64
	testDB.Table("machine_corrections").Where("machine_id = ?", 99).
		Order("created_at ASC").Limit(1).Pluck("fat1", &oldest)
	assert.Equal(t, 2.0, oldest)
}

// TestAdminChartAssignment covers the operator-side chart operations:
// exclusive assignment per (society, channel), explicit replacement, and
// download-history reset.
func TestAdminChartAssignment(t *testing.T) {
	testDB, _ := setupTestServer(t)
	s := store.NewGormStore(testDB)
	tc := tenant.Context{ID: 1}
	ctx := context.Background()

	first := model.RateChart{SocietyID: 5, Channel: 1, Name: "Jan COW", UploadedAt: time.Now()}
	require.NoError(t, s.AssignRateChart(ctx, tc, &first, false))

	// The pair already has an active chart; implicit replacement is refused.
	second := model.RateChart{SocietyID: 5, Channel: 1, Name: "Feb COW", UploadedAt: time.Now()}
	assert.ErrorIs(t, s.AssignRateChart(ctx, tc, &second, false), store.ErrChartAssigned)

	// Another channel of the same society is independent.
	bufChart := model.RateChart{SocietyID: 5, Channel: 2, Name: "Feb BUF", UploadedAt: time.Now()}
	assert.NoError(t, s.AssignRateChart(ctx, tc, &bufChart, false))

	// Explicit replacement deactivates the old assignment.
	require.NoError(t, s.AssignRateChart(ctx, tc, &second, true))
	active, err := s.ActiveRateChart(ctx, tc, 5, parse.ChannelCow)
	require.NoError(t, err)
	assert.Equal(t, "Feb COW", active.Name)

	var old model.RateChart
	require.NoError(t, testDB.First(&old, first.ID).Error)
	assert.Equal(t, 0, old.Status)

	// Resetting download history makes machines fetch the chart again.
	require.NoError(t, s.RecordChartDownload(ctx, tc, active.ID, 42, time.Now()))
	require.NoError(t, s.ResetChartDownloads(ctx, tc, active.ID))
	var downloads int64
	testDB.Table("rate_chart_downloads").Where("chart_id = ?", active.ID).Count(&downloads)
	assert.Equal(t, int64(0), downloads)
}

// TestAdminReplaceCorrection covers the operator-side correction write,
// which replaces the active row regardless of date.
func TestAdminReplaceCorrection(t *testing.T) {
	testDB, _ := setupTestServer(t)
	s := store.NewGormStore(testDB)
	tc := tenant.Context{ID: 1}
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1)
	require.NoError(t, s.SaveCorrection(ctx, tc, 77, parse.ChannelCow,
		parse.CorrectionValues{Fat: 0.10}, yesterday))

	require.NoError(t, s.ReplaceCorrection(ctx, tc, 77, parse.ChannelCow,
		parse.CorrectionValues{Fat: 0.25}, time.Now()))

	cor, err := s.ActiveCorrection(ctx, tc, 77)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cor.Fat1)

	var activeCount int64
	testDB.Table("machine_corrections").Where("machine_id = ? AND status = ?", 77, 1).Count(&activeCount)
	assert.Equal(t, int64(1), activeCount)

	var totalCount int64
	testDB.Table("machine_corrections").Where("machine_id = ?", 77).Count(&totalCount)
	assert.Equal(t, int64(2), totalCount, "the replaced row stays in history")
}

// TestSubscriptionRoundTrip covers the operator subscription API against
// the same in-memory database.
func TestSubscriptionRoundTrip(t *testing.T) {
	testDB, router := setupTestServer(t)

	put := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("PUT", "/api/subscriptions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	w := put(`{"endpoint":"https://example.com/push","p256dh":"k1","auth":"a1","org_key":"T1","machines":[1,2]}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Replacing the subscription swaps its targets.
	w = put(`{"endpoint":"https://example.com/push","p256dh":"k2","auth":"a2","org_key":"T1","machines":[3]}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var targets int64
	testDB.Model(&model.SubscriptionTarget{}).Where("endpoint = ?", "https://example.com/push").Count(&targets)
	assert.Equal(t, int64(1), targets)

	var subs int64
	testDB.Model(&model.PushSubscription{}).Count(&subs)
	assert.Equal(t, int64(1), subs)

	// Unknown tenant key is rejected.
	w = put(`{"endpoint":"https://example.com/other","p256dh":"k","auth":"a","org_key":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Delete removes the subscription and its targets.
	wDel := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/subscriptions", strings.NewReader(`{"endpoint":"https://example.com/push"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(wDel, req)
	assert.Equal(t, http.StatusNoContent, wDel.Code)

	testDB.Model(&model.SubscriptionTarget{}).Count(&targets)
	assert.Equal(t, int64(0), targets)
}
