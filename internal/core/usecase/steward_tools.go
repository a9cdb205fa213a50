package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
)

const (
	ToolGetProperties          = "get_properties"
	ToolGetTenants             = "get_tenants"
	ToolGetMaintenanceRequests = "get_maintenance_requests"
	ToolGetApplications        = "get_applications"
	ToolGetPayments            = "get_payments"
	ToolDraftMessage           = "draft_message"
	ToolNavigate               = "navigate"
)

const defaultToolLimit = 20

// ReadOnlyTools are safe to expose outside the chat loop.
var ReadOnlyTools = []string{
	ToolGetProperties,
	ToolGetTenants,
	ToolGetMaintenanceRequests,
	ToolGetApplications,
	ToolGetPayments,
}

type propertyArgs struct {
	PropertyID string `json:"property_id"`
	Limit      int    `json:"limit"`
}

type tenantArgs struct {
	TenantID   string `json:"tenant_id"`
	PropertyID string `json:"property_id"`
	Status     string `json:"status"`
	Limit      int    `json:"limit"`
}

type maintenanceArgs struct {
	RequestID  string `json:"request_id"`
	PropertyID string `json:"property_id"`
	Status     string `json:"status"`
	Limit      int    `json:"limit"`
}

type applicationArgs struct {
	ApplicationID string `json:"application_id"`
	PropertyID    string `json:"property_id"`
	Status        string `json:"status"`
	Limit         int    `json:"limit"`
}

type paymentArgs struct {
	PaymentID  string `json:"payment_id"`
	TenantID   string `json:"tenant_id"`
	PropertyID string `json:"property_id"`
	Status     string `json:"status"`
	Limit      int    `json:"limit"`
}

type draftMessageArgs struct {
	Purpose      string `json:"purpose"`
	Tone         string `json:"tone"`
	TenantName   string `json:"tenantName"`
	PropertyName string `json:"propertyName"`
	Details      string `json:"details"`
}

type navigateArgs struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// StewardTools builds the built-in tool set over the read-only directory.
func StewardTools(directory ports.PropertyDirectory) []Tool {
	return []Tool{
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolGetProperties,
			Description: "List properties in the portfolio, or fetch one by id.",
			Parameters: objectSchema(map[string]any{
				"property_id": stringProp("Property id to fetch"),
				"limit":       limitProp(),
			}),
		}, func(ctx context.Context, args propertyArgs) (any, error) {
			items, err := directory.ListProperties(ctx, domain.DirectoryFilter{ID: args.PropertyID, Limit: toolLimit(args.Limit)})
			if err != nil {
				return nil, err
			}
			return listResult("properties", "Property", args.PropertyID, items), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolGetTenants,
			Description: "List tenants, optionally filtered by property or status, or fetch one by id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":   stringProp("Tenant id to fetch"),
				"property_id": stringProp("Only tenants of this property"),
				"status":      stringProp("Tenant status, e.g. active or past"),
				"limit":       limitProp(),
			}),
		}, func(ctx context.Context, args tenantArgs) (any, error) {
			items, err := directory.ListTenants(ctx, domain.DirectoryFilter{
				ID:         args.TenantID,
				PropertyID: args.PropertyID,
				Status:     args.Status,
				Limit:      toolLimit(args.Limit),
			})
			if err != nil {
				return nil, err
			}
			return listResult("tenants", "Tenant", args.TenantID, items), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolGetMaintenanceRequests,
			Description: "List maintenance requests, optionally filtered by property or status, or fetch one by id.",
			Parameters: objectSchema(map[string]any{
				"request_id":  stringProp("Maintenance request id to fetch"),
				"property_id": stringProp("Only requests for this property"),
				"status":      stringProp("Request status, e.g. open or completed"),
				"limit":       limitProp(),
			}),
		}, func(ctx context.Context, args maintenanceArgs) (any, error) {
			items, err := directory.ListMaintenanceRequests(ctx, domain.DirectoryFilter{
				ID:         args.RequestID,
				PropertyID: args.PropertyID,
				Status:     args.Status,
				Limit:      toolLimit(args.Limit),
			})
			if err != nil {
				return nil, err
			}
			return listResult("requests", "Maintenance request", args.RequestID, items), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolGetApplications,
			Description: "List rental applications, optionally filtered by property or status, or fetch one by id.",
			Parameters: objectSchema(map[string]any{
				"application_id": stringProp("Application id to fetch"),
				"property_id":    stringProp("Only applications for this property"),
				"status":         stringProp("Application status, e.g. pending or approved"),
				"limit":          limitProp(),
			}),
		}, func(ctx context.Context, args applicationArgs) (any, error) {
			items, err := directory.ListApplications(ctx, domain.DirectoryFilter{
				ID:         args.ApplicationID,
				PropertyID: args.PropertyID,
				Status:     args.Status,
				Limit:      toolLimit(args.Limit),
			})
			if err != nil {
				return nil, err
			}
			return listResult("applications", "Application", args.ApplicationID, items), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolGetPayments,
			Description: "List rent payments, optionally filtered by tenant, property or status, or fetch one by id.",
			Parameters: objectSchema(map[string]any{
				"payment_id":  stringProp("Payment id to fetch"),
				"tenant_id":   stringProp("Only payments of this tenant"),
				"property_id": stringProp("Only payments for this property"),
				"status":      stringProp("Payment status, e.g. paid, pending or late"),
				"limit":       limitProp(),
			}),
		}, func(ctx context.Context, args paymentArgs) (any, error) {
			items, err := directory.ListPayments(ctx, domain.DirectoryFilter{
				ID:         args.PaymentID,
				TenantID:   args.TenantID,
				PropertyID: args.PropertyID,
				Status:     args.Status,
				Limit:      toolLimit(args.Limit),
			})
			if err != nil {
				return nil, err
			}
			return listResult("payments", "Payment", args.PaymentID, items), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolDraftMessage,
			Description: "Draft a message to a tenant. The draft is returned for review and is never sent by this tool.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"purpose"},
				"properties": map[string]any{
					"purpose": map[string]any{
						"type":        "string",
						"description": "What the message is for, e.g. rent-reminder, lease-renewal, maintenance-update, welcome",
					},
					"tone": map[string]any{
						"type": "string",
						"enum": []any{"friendly", "formal", "firm"},
					},
					"tenantName":   stringProp("Recipient name"),
					"propertyName": stringProp("Property the message concerns"),
					"details":      stringProp("Extra facts to include"),
				},
			},
		}, func(_ context.Context, args draftMessageArgs) (any, error) {
			return draftMessage(args), nil
		}),
		NewTypedTool(domain.ToolDefinition{
			Name:        ToolNavigate,
			Description: "Send the user to a page of the application.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"path"},
				"properties": map[string]any{
					"path":  map[string]any{"type": "string", "minLength": 1, "description": "Application route, e.g. /tenants/t-1"},
					"label": stringProp("Button label shown to the user"),
				},
			},
		}, func(_ context.Context, args navigateArgs) (any, error) {
			path := strings.TrimSpace(args.Path)
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			label := strings.TrimSpace(args.Label)
			if label == "" {
				label = "Open " + path
			}
			return map[string]any{"path": path, "label": label}, nil
		}),
	}
}

func listResult[T any](key, noun, id string, items []T) map[string]any {
	if strings.TrimSpace(id) != "" && len(items) == 0 {
		return map[string]any{"error": fmt.Sprintf("%s %s not found", noun, id)}
	}
	if items == nil {
		items = []T{}
	}
	return map[string]any{key: items, "count": len(items)}
}

var draftGreetings = map[string]string{
	"friendly": "Hi %s,",
	"formal":   "Dear %s,",
	"firm":     "%s,",
}

var draftClosings = map[string]string{
	"friendly": "Thanks so much!",
	"formal":   "Kind regards,",
	"firm":     "Regards,",
}

var draftBodies = map[string]string{
	"rent-reminder":      "This is a reminder that rent%s is due. Please let us know if you have any questions about your balance.",
	"lease-renewal":      "Your lease%s is coming up for renewal. We would love to have you stay and will follow up with the renewal terms.",
	"maintenance-update": "We have an update on your maintenance request%s. Our team is on it and will keep you posted.",
	"welcome":            "Welcome to your new home%s! Reach out any time if you need anything.",
}

func draftMessage(args draftMessageArgs) map[string]any {
	purpose := strings.ToLower(strings.TrimSpace(args.Purpose))
	tone := args.Tone
	if _, ok := draftGreetings[tone]; !ok {
		tone = "friendly"
	}
	recipient := strings.TrimSpace(args.TenantName)
	if recipient == "" {
		recipient = "Resident"
	}

	where := ""
	if name := strings.TrimSpace(args.PropertyName); name != "" {
		where = " at " + name
	}
	template, ok := draftBodies[purpose]
	if !ok {
		template = "We are reaching out regarding " + strings.ReplaceAll(purpose, "-", " ") + "%s."
	}

	lines := []string{
		fmt.Sprintf(draftGreetings[tone], recipient),
		"",
		fmt.Sprintf(template, where),
	}
	if details := strings.TrimSpace(args.Details); details != "" {
		lines = append(lines, "", details)
	}
	lines = append(lines, "", draftClosings[tone])

	return map[string]any{
		"purpose":   purpose,
		"tone":      tone,
		"recipient": recipient,
		"subject":   draftSubject(purpose),
		"body":      strings.Join(lines, "\n"),
	}
}

func draftSubject(purpose string) string {
	words := strings.Fields(strings.ReplaceAll(purpose, "-", " "))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	if len(words) == 0 {
		return "Message from your property manager"
	}
	return strings.Join(words, " ")
}

func objectSchema(properties map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": properties}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func limitProp() map[string]any {
	return map[string]any{"type": "integer", "minimum": 1, "maximum": 100, "description": "Maximum number of records"}
}

func toolLimit(limit int) int {
	if limit <= 0 {
		return defaultToolLimit
	}
	return limit
}
