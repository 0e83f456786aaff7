package main

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"account-ledger/internal/config"
	"account-ledger/internal/server"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type IntegrationTestSuite struct {
	suite.Suite
	postgresContainer testcontainers.Container
	serverInstance    *server.Server
	serverPort        string
	baseURL           string
	client            *http.Client
	dbConnStr         string
}

func (suite *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("account_ledger"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %s", err)
	}
	suite.postgresContainer = postgresContainer

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get container host: %s", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get mapped port: %s", err)
	}

	suite.dbConnStr = fmt.Sprintf("host=%s port=%s user=postgres password=password dbname=account_ledger sslmode=disable",
		host, port.Port())

	if err := suite.runMigrations(); err != nil {
		suite.T().Fatalf("Failed to run migrations: %s", err)
	}

	if err := suite.startApplicationServer(host, port.Port()); err != nil {
		suite.T().Fatalf("Failed to start application server: %s", err)
	}

	suite.client = &http.Client{
		Timeout: 30 * time.Second,
	}
}

func (suite *IntegrationTestSuite) runMigrations() error {
	db, err := sql.Open("postgres", suite.dbConnStr)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationFiles, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	sort.Slice(migrationFiles, func(i, j int) bool {
		return migrationFiles[i].Name() < migrationFiles[j].Name()
	})

	for _, file := range migrationFiles {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationSQL, err := migrationsFS.ReadFile(filepath.Join("migrations", file.Name()))
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
			}

			if _, err := db.Exec(string(migrationSQL)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
			}

			suite.T().Logf("Executed migration: %s", file.Name())
		}
	}

	return nil
}

func (suite *IntegrationTestSuite) startApplicationServer(dbHost, dbPort string) error {
	cfg := &config.Config{
		DBHost:     dbHost,
		DBPort:     dbPort,
		DBUser:     "postgres",
		DBPassword: "password",
		DBName:     "account_ledger",
		DBSSLMode:  "disable",
		ServerPort: "0", // Let OS choose a free port
	}

	serverInstance, port, err := server.StartServer(cfg)
	if err != nil {
		return err
	}

	suite.serverInstance = serverInstance
	suite.serverPort = port
	suite.baseURL = "http://localhost:" + port

	return suite.waitForServerReady()
}

func (suite *IntegrationTestSuite) waitForServerReady() error {
	timeout := 30 * time.Second
	start := time.Now()

	for time.Since(start) < timeout {
		resp, err := http.Get(suite.baseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}

func (suite *IntegrationTestSuite) TearDownSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if suite.serverInstance != nil {
		suite.serverInstance.Stop(ctx)
	}

	if suite.postgresContainer != nil {
		suite.postgresContainer.Terminate(ctx)
	}
}

// ------------------------------------------------------------------
// HTTP helpers
// ------------------------------------------------------------------

func (suite *IntegrationTestSuite) doJSON(method, path string, payload interface{}) (int, map[string]interface{}) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			suite.T().Fatalf("Failed to marshal payload: %s", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, suite.baseURL+path, body)
	if err != nil {
		suite.T().Fatalf("Failed to build request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := suite.client.Do(req)
	if err != nil {
		suite.T().Fatalf("Request failed: %s", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var parsed map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			suite.T().Fatalf("Failed to parse response %q: %s", respBody, err)
		}
	}
	return resp.StatusCode, parsed
}

func (suite *IntegrationTestSuite) createAccount(name string) int64 {
	status, response := suite.doJSON("POST", "/accounts?accountName="+name, nil)
	assert.Equal(suite.T(), http.StatusCreated, status)

	data := response["data"].(map[string]interface{})
	return int64(data["account_number"].(float64))
}

func (suite *IntegrationTestSuite) accountBalance(number int64) string {
	status, response := suite.doJSON("GET", fmt.Sprintf("/accounts/%d", number), nil)
	assert.Equal(suite.T(), http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	return data["balance"].(string)
}

func (suite *IntegrationTestSuite) deposit(number int64, amount string) (int, map[string]interface{}) {
	return suite.doJSON("POST", "/balance/deposit", map[string]interface{}{
		"account_number": number,
		"amount":         amount,
	})
}

func (suite *IntegrationTestSuite) withdraw(number int64, amount string) (int, map[string]interface{}) {
	return suite.doJSON("POST", "/balance/withdraw", map[string]interface{}{
		"account_number": number,
		"amount":         amount,
	})
}

func (suite *IntegrationTestSuite) transfer(from, to int64, amount string) (int, map[string]interface{}) {
	return suite.doJSON("POST", "/balance/transfer", map[string]interface{}{
		"from_account_number": from,
		"to_account_number":   to,
		"amount":              amount,
	})
}

func (suite *IntegrationTestSuite) assertDecimalEqual(expected, actual string, msgAndArgs ...interface{}) {
	expectedDec, err := decimal.NewFromString(expected)
	if err != nil {
		suite.T().Fatalf("Invalid expected decimal: %s", expected)
	}

	actualDec, err := decimal.NewFromString(actual)
	if err != nil {
		suite.T().Fatalf("Invalid actual decimal: %s", actual)
	}

	assert.True(suite.T(), expectedDec.Equal(actualDec),
		"Decimal values not equal: expected %s, got %s", expected, actual)
}

func errorMessage(response map[string]interface{}) string {
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	message, _ := errObj["message"].(string)
	return message
}

// ------------------------------------------------------------------
// Steps below are helpers (non-test methods). They are executed in the
// order invoked by TestFlow for deterministic sequencing.
// ------------------------------------------------------------------

func (suite *IntegrationTestSuite) stepHealthCheck() {
	resp, err := suite.client.Get(suite.baseURL + "/health")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var healthResp map[string]interface{}
	err = json.Unmarshal(body, &healthResp)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "healthy", healthResp["status"])
}

func (suite *IntegrationTestSuite) stepCreateAndFetchAccount() {
	number := suite.createAccount("alice")
	assert.Greater(suite.T(), number, int64(0))

	status, response := suite.doJSON("GET", fmt.Sprintf("/accounts/%d", number), nil)
	assert.Equal(suite.T(), http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "alice", data["account_name"])
	suite.assertDecimalEqual("0.00", data["balance"].(string))
}

func (suite *IntegrationTestSuite) stepCreateAccountValidation() {
	status, _ := suite.doJSON("POST", "/accounts", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, status)
}

func (suite *IntegrationTestSuite) stepAccountNotFound() {
	status, response := suite.doJSON("GET", "/accounts/9999999", nil)
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Equal(suite.T(), "Account not found", errorMessage(response))
}

func (suite *IntegrationTestSuite) stepFindAllPaging() {
	for i := 0; i < 3; i++ {
		suite.createAccount(fmt.Sprintf("paging-%d", i))
	}

	status, response := suite.doJSON("GET", "/accounts?pageNum=0&pageSize=2", nil)
	assert.Equal(suite.T(), http.StatusOK, status)

	list := response["data"].([]interface{})
	assert.Len(suite.T(), list, 2)

	status, _ = suite.doJSON("GET", "/accounts?pageSize=0", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, status)
}

func (suite *IntegrationTestSuite) stepDepositTwice() {
	number := suite.createAccount("deposit-twice")

	status, response := suite.deposit(number, "10.00")
	assert.Equal(suite.T(), http.StatusOK, status)
	data := response["data"].(map[string]interface{})
	suite.assertDecimalEqual("10.00", data["balance"].(string))

	status, response = suite.deposit(number, "10.00")
	assert.Equal(suite.T(), http.StatusOK, status)
	data = response["data"].(map[string]interface{})
	suite.assertDecimalEqual("20.00", data["balance"].(string))

	suite.assertDecimalEqual("20.00", suite.accountBalance(number))
}

func (suite *IntegrationTestSuite) stepWithdrawInsufficientFunds() {
	number := suite.createAccount("overdraft")
	suite.deposit(number, "20.00")

	status, response := suite.withdraw(number, "25.00")
	assert.Equal(suite.T(), http.StatusBadRequest, status)
	assert.Equal(suite.T(), "insufficient funds", errorMessage(response))

	suite.assertDecimalEqual("20.00", suite.accountBalance(number))
}

func (suite *IntegrationTestSuite) stepScaleRejected() {
	number := suite.createAccount("precise")

	status, _ := suite.deposit(number, "10.001")
	assert.Equal(suite.T(), http.StatusBadRequest, status)

	suite.assertDecimalEqual("0.00", suite.accountBalance(number))
}

func (suite *IntegrationTestSuite) stepSuccessfulTransfer() {
	from := suite.createAccount("transfer-from")
	to := suite.createAccount("transfer-to")
	suite.deposit(from, "100.00")

	status, _ := suite.transfer(from, to, "10.00")
	assert.Equal(suite.T(), http.StatusOK, status)

	suite.assertDecimalEqual("90.00", suite.accountBalance(from))
	suite.assertDecimalEqual("10.00", suite.accountBalance(to))
}

func (suite *IntegrationTestSuite) stepTransferSameAccount() {
	number := suite.createAccount("self-transfer")
	suite.deposit(number, "50.00")

	status, response := suite.transfer(number, number, "5.00")
	assert.Equal(suite.T(), http.StatusBadRequest, status)
	assert.Equal(suite.T(), "FROM and TO accounts cannot be the same", errorMessage(response))
}

func (suite *IntegrationTestSuite) stepTransferToMissingAccountRollsBack() {
	from := suite.createAccount("rollback-from")
	suite.deposit(from, "50.00")

	status, response := suite.transfer(from, 9999999, "5.00")
	assert.Equal(suite.T(), http.StatusBadRequest, status)
	assert.Equal(suite.T(), "'to' Account not found", errorMessage(response))

	// no partial debit
	suite.assertDecimalEqual("50.00", suite.accountBalance(from))
}

func (suite *IntegrationTestSuite) stepUpdateAccount() {
	number := suite.createAccount("update-me")

	status, response := suite.doJSON("PUT", fmt.Sprintf("/accounts/%d", number), map[string]interface{}{
		"account_name": "updated",
		"balance":      "12.345",
	})
	assert.Equal(suite.T(), http.StatusOK, status)

	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "updated", data["account_name"])
	// half-up coercion on full overwrite
	suite.assertDecimalEqual("12.35", data["balance"].(string))
}

func (suite *IntegrationTestSuite) stepConcurrentTransfersConserveTotal() {
	a := suite.createAccount("concurrent-a")
	b := suite.createAccount("concurrent-b")
	suite.deposit(a, "500.00")
	suite.deposit(b, "500.00")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			suite.transfer(a, b, "1.00")
		}()
		go func() {
			defer wg.Done()
			suite.transfer(b, a, "1.00")
		}()
	}
	wg.Wait()

	balanceA, err := decimal.NewFromString(suite.accountBalance(a))
	assert.NoError(suite.T(), err)
	balanceB, err := decimal.NewFromString(suite.accountBalance(b))
	assert.NoError(suite.T(), err)

	assert.True(suite.T(), balanceA.Add(balanceB).Equal(decimal.NewFromInt(1000)),
		"total balance changed: %s + %s", balanceA, balanceB)
	assert.False(suite.T(), balanceA.IsNegative())
	assert.False(suite.T(), balanceB.IsNegative())
}

func (suite *IntegrationTestSuite) TestFlow() {
	suite.stepHealthCheck()
	suite.stepCreateAndFetchAccount()
	suite.stepCreateAccountValidation()
	suite.stepAccountNotFound()
	suite.stepFindAllPaging()
	suite.stepDepositTwice()
	suite.stepWithdrawInsufficientFunds()
	suite.stepScaleRejected()
	suite.stepSuccessfulTransfer()
	suite.stepTransferSameAccount()
	suite.stepTransferToMissingAccountRollsBack()
	suite.stepUpdateAccount()
	suite.stepConcurrentTransfersConserveTotal()
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
