// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the whytree command line.
//
// Commands:
//
//	whytree explore [question]    grow a tree (terminal view or plain log)
//	whytree replay <id>           play back a saved tree
//	whytree history               list saved trees
//	whytree history rm <id>       delete a saved tree
//	whytree export <id>           write a saved tree as json, md or html
//	whytree examples              list a relay's example trees
//	whytree personas              list personas and models
//	whytree relay                 run the quota relay server
//	whytree config show|get|set|path
//	whytree version
//
// Every command returns its error; Execute maps it to an exit code.
package cli
