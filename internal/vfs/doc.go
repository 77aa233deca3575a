/*
Package vfs implements the in-memory virtual file store backing a preview
project.

# Overview

A project is a flat map of project-relative path to file record. Files are
created by the editor, by generated-content application, or by import; mutated
in place; and deleted explicitly (a rename is a delete plus a create under the
new key). The store never touches a real filesystem.

Every mutation fires a change notification to registered subscribers. The
lifecycle manager subscribes and treats each notification as a "project
changed" event, debouncing bursts into a single rebuild.

# Concurrency

The store is mutated only on the host side; readers take consistent snapshots.
All methods are safe for concurrent use.
*/
package vfs
