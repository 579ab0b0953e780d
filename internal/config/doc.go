// Package config provides configuration management for xlharvest.
package config
