// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

/*
Package services provides suture.Service wrappers for Mangaguard components.

Each wrapper translates a component lifecycle into suture's Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps *http.Server. ListenAndServe runs in a goroutine and
Shutdown drains connections when the context is canceled.

ConsumerService wraps the run queue consumer. A closed subscription is
reported as an error so the supervisor reconnects it.

All wrappers implement fmt.Stringer so suture logs name the service.
*/
package services
