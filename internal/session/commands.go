// ABOUTME: Command table mapping chat commands to tool names and argument builders
// ABOUTME: Also renders each tool's JSON result as readable text

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type command struct {
	name  string
	usage string
	help  string
	tool  string
	args  func(s *Session, rest string) (map[string]any, error)
	// run handles commands that do not map to a single tool
	run    func(ctx context.Context, s *Session, rest string) error
	render func(out io.Writer, text string)
}

var commands []command

func init() {
	commands = []command{
		{
			name:   "restaurants",
			usage:  "restaurants",
			help:   "list restaurants and their menus",
			tool:   "list_restaurants",
			args:   userOnly,
			render: renderRestaurants,
		},
		{
			name:   "dishes",
			usage:  "dishes <restaurant>",
			help:   "show one restaurant's menu",
			tool:   "list_dishes",
			args:   withRestaurant,
			render: renderDishes,
		},
		{
			name:  "order",
			usage: "order <restaurant> / <dish>",
			help:  "place an order",
			tool:  "order_dish",
			args:  withRestaurantAndDish,
		},
		{
			name:  "request-access",
			usage: "request-access <restaurant>",
			help:  "ask a parent for access to a restaurant",
			tool:  "request_restaurant_access",
			args:  withRestaurant,
		},
		{
			name:  "request-dish",
			usage: "request-dish <dish> [/ <restaurant>]",
			help:  "ask a parent to approve an expensive dish",
			tool:  "request_dish_order",
			args:  withDish,
		},
		{
			name:   "pending",
			usage:  "pending [restaurant_access|dish_order]",
			help:   "list requests waiting for your approval",
			tool:   "list_pending_requests",
			args:   withOptionalKind,
			render: renderPending,
		},
		{
			name:  "approve",
			usage: "approve <restaurant_access|dish_order> <id>",
			help:  "approve a pending request",
			tool:  "approve_request",
			args:  withKindAndID,
		},
		{
			name:  "tools",
			usage: "tools",
			help:  "list the tools the server offers",
			run: func(ctx context.Context, s *Session, _ string) error {
				return s.printTools(ctx)
			},
		},
		{
			name:  "help",
			usage: "help",
			help:  "show this list",
			run: func(_ context.Context, s *Session, _ string) error {
				s.printHelp()
				return nil
			},
		},
		{
			name:  "quit",
			usage: "quit",
			help:  "leave",
			run: func(context.Context, *Session, string) error {
				return ErrQuit
			},
		},
	}
}

func lookupCommand(name string) (command, bool) {
	if name == "exit" {
		name = "quit"
	}
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

var errMissingArgument = errors.New("missing argument")

func userOnly(s *Session, _ string) (map[string]any, error) {
	return map[string]any{"username": s.username}, nil
}

func withRestaurant(s *Session, rest string) (map[string]any, error) {
	if rest == "" {
		return nil, fmt.Errorf("%w: restaurant name", errMissingArgument)
	}
	return map[string]any{"username": s.username, "restaurant_name": rest}, nil
}

// splitPair splits "left / right" on the first slash
func splitPair(rest string) (string, string) {
	left, right, _ := strings.Cut(rest, "/")
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

func withRestaurantAndDish(s *Session, rest string) (map[string]any, error) {
	restaurant, dish := splitPair(rest)
	if restaurant == "" || dish == "" {
		return nil, fmt.Errorf("%w: restaurant and dish separated by /", errMissingArgument)
	}
	return map[string]any{"username": s.username, "restaurant_name": restaurant, "dish_name": dish}, nil
}

func withDish(s *Session, rest string) (map[string]any, error) {
	dish, restaurant := splitPair(rest)
	if dish == "" {
		return nil, fmt.Errorf("%w: dish name", errMissingArgument)
	}
	args := map[string]any{"username": s.username, "dish_name": dish}
	if restaurant != "" {
		args["restaurant_name"] = restaurant
	}
	return args, nil
}

func withOptionalKind(s *Session, rest string) (map[string]any, error) {
	args := map[string]any{"username": s.username}
	if rest != "" {
		args["kind"] = rest
	}
	return args, nil
}

func withKindAndID(s *Session, rest string) (map[string]any, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: kind and request id", errMissingArgument)
	}
	return map[string]any{"username": s.username, "kind": fields[0], "request_id": fields[1]}, nil
}

// renderMessage prints the "message" field of a result, or the raw text
func renderMessage(out io.Writer, text string) {
	var res struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &res); err != nil || res.Message == "" {
		_, _ = fmt.Fprintln(out, text)
		return
	}
	_, _ = successText.Fprintln(out, res.Message)
}

func renderRestaurants(out io.Writer, text string) {
	var res struct {
		Restaurants []struct {
			Name               string `json:"name"`
			AllowedForChildren bool   `json:"allowed_for_children"`
			CanOrder           *bool  `json:"can_order"`
			Dishes             []struct {
				Name  string `json:"name"`
				Price string `json:"price"`
			} `json:"dishes"`
		} `json:"restaurants"`
	}
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		_, _ = fmt.Fprintln(out, text)
		return
	}

	for _, r := range res.Restaurants {
		var notes []string
		if r.AllowedForChildren {
			notes = append(notes, "kid-friendly")
		}
		if r.CanOrder != nil && !*r.CanOrder {
			notes = append(notes, "needs access")
		}
		line := r.Name
		if len(notes) > 0 {
			line += " " + dimText.Sprintf("(%s)", strings.Join(notes, ", "))
		}
		_, _ = headingText.Fprintln(out, line)
		for _, d := range r.Dishes {
			_, _ = fmt.Fprintf(out, "  - %s (%s)\n", d.Name, d.Price)
		}
	}
}

func renderDishes(out io.Writer, text string) {
	var res struct {
		Restaurant string `json:"restaurant"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		_, _ = fmt.Fprintln(out, text)
		return
	}
	_, _ = headingText.Fprintln(out, res.Restaurant)
	_, _ = fmt.Fprintln(out, res.Text)
}

func renderPending(out io.Writer, text string) {
	var res struct {
		Requests []struct {
			ID         string `json:"id"`
			Kind       string `json:"kind"`
			Requester  string `json:"requester"`
			Restaurant string `json:"restaurant"`
			Dish       string `json:"dish"`
			Reason     string `json:"reason"`
		} `json:"requests"`
	}
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		_, _ = fmt.Fprintln(out, text)
		return
	}
	if len(res.Requests) == 0 {
		_, _ = fmt.Fprintln(out, "No pending requests.")
		return
	}
	for _, r := range res.Requests {
		_, _ = fmt.Fprintf(out, "[%s] %s %s\n", r.Kind, r.ID, dimText.Sprint(r.Reason))
	}
}
