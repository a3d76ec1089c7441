package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-pos-ledger/internal/analytics"
	"go-pos-ledger/internal/ledger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Agent answers manager questions over the ledger's read-only analytics
// queries. It never mutates ledger state; every tool is a read.
type Agent struct {
	Analytics *analytics.Service
	Ledger    *ledger.Ledger
}

func (a *Agent) Run(userMessage string, apiKey string) (string, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash-001")

	today := time.Now().Format("2006-01-02")

	systemPrompt := fmt.Sprintf(`SYSTEM: Today is %s. You are the dashboard assistant of a restaurant order ledger.

	RULES:
	1. REVENUE: If the user asks for sales, revenue or order counts, call 'get_revenue_report' with a date range.
	2. KITCHEN: For questions about the kitchen queue or pending orders, call 'get_backlog'.
	3. STATUS: For the spread of order states, call 'get_status_histogram'.
	4. ORDERS: For one specific order, call 'get_order' with its id and read the JSON.
	5. You only READ data. If asked to change an order, explain that mutations go through the POS screens.

	USER: %s`, today, userMessage)

	model.Tools = []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        "get_revenue_report",
					Description: "Get order count, revenue and profit for a date range.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
							"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
						},
						Required: []string{"start_date", "end_date"},
					},
				},
				{
					Name:        "get_status_histogram",
					Description: "Get the count of orders per delivery status.",
				},
				{
					Name:        "get_backlog",
					Description: "Get the number of orders still waiting for the kitchen and whether it passes the alert threshold.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"threshold": {Type: genai.TypeInteger, Description: "Alert threshold (default 10)"},
						},
					},
				},
				{
					Name:        "get_order",
					Description: "Get one order with its line items and totals by numeric id.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"order_id": {Type: genai.TypeInteger, Description: "ID of the order"},
						},
						Required: []string{"order_id"},
					},
				},
			},
		},
	}

	session := model.StartChat()

	resp, err := session.SendMessage(ctx, genai.Text(systemPrompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if funcCall, ok := part.(genai.FunctionCall); ok {
				switch funcCall.Name {
				case "get_revenue_report":
					return a.executeRevenueReport(ctx, session, funcCall), nil
				case "get_status_histogram":
					return a.executeStatusHistogram(ctx, session), nil
				case "get_backlog":
					return a.executeBacklog(ctx, session, funcCall), nil
				case "get_order":
					return a.executeGetOrder(ctx, session, funcCall), nil
				}
			}
		}
	}

	return printResponse(resp), nil
}

// --- TOOL EXECUTORS ---

func (a *Agent) executeRevenueReport(ctx context.Context, session *genai.ChatSession, funcCall genai.FunctionCall) string {
	args := funcCall.Args
	startStr, _ := args["start_date"].(string)
	endStr, _ := args["end_date"].(string)

	start, err1 := time.Parse("2006-01-02", startStr)
	end, err2 := time.Parse("2006-01-02", endStr)
	if err1 != nil || err2 != nil {
		return "Error: Dates must be in YYYY-MM-DD format."
	}
	end = end.Add(23*time.Hour + 59*time.Minute)

	report := a.Analytics.Summary(start, end)

	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name: "get_revenue_report",
		Response: map[string]interface{}{
			"order_count": report.OrderCount,
			"revenue":     report.Revenue,
			"profit":      report.Profit,
		},
	})
	return printResponse(finalResp)
}

func (a *Agent) executeStatusHistogram(ctx context.Context, session *genai.ChatSession) string {
	rows := a.Analytics.StatusHistogram()
	jsonBytes, _ := json.Marshal(rows)

	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name:     "get_status_histogram",
		Response: map[string]interface{}{"histogram": string(jsonBytes)},
	})
	return printResponse(finalResp)
}

func (a *Agent) executeBacklog(ctx context.Context, session *genai.ChatSession, funcCall genai.FunctionCall) string {
	threshold := 10
	if raw, ok := funcCall.Args["threshold"].(float64); ok && raw > 0 {
		threshold = int(raw)
	}
	backlog := a.Analytics.BacklogAlert(threshold)

	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name: "get_backlog",
		Response: map[string]interface{}{
			"pending": backlog.Pending,
			"alert":   backlog.Alert,
		},
	})
	return printResponse(finalResp)
}

func (a *Agent) executeGetOrder(ctx context.Context, session *genai.ChatSession, funcCall genai.FunctionCall) string {
	rawID, ok := funcCall.Args["order_id"].(float64)
	if !ok {
		return "Error: order_id must be a number."
	}

	order, err := a.Ledger.GetOrder(uint(rawID))
	if err != nil {
		finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
			Name:     "get_order",
			Response: map[string]interface{}{"error": err.Error()},
		})
		return printResponse(finalResp)
	}

	jsonBytes, _ := json.Marshal(order)
	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name:     "get_order",
		Response: map[string]interface{}{"order": string(jsonBytes)},
	})
	return printResponse(finalResp)
}

// printResponse pulls the first text part out of a response. The model
// may return no candidates at all (safety block, dropped send), so the
// fallback reply covers every empty shape.
func printResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I completed the action."
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "I completed the action."
}
